package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/hyparm/guest"
	"github.com/sarchlab/hyparm/intc"
	"github.com/sarchlab/hyparm/loader"
	"github.com/sarchlab/hyparm/vm"
)

var imagePath string

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&imagePath, "image", "i", "", "ARM ELF image to load before replaying")
}

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Replay a script of trapped guest operations",
	Long: `Replay a YAML script against a fresh VM and print the final guest state.

Each step has an op and its operands:
  mcr, mrc   word          trapped coprocessor instruction
  store      addr, value   device register store (size defaults to 4)
  load       addr          device register load, checked against expect
  tick       cycles        advance the physical timer
  irq        irq           raise a device interrupt
  deliver                  deliver the highest pending exception
  set        reg, value    set r0-r15, pc or cpsr
  abort      addr          throw a data abort (fault_type, write, domain)
  svc                      enter the SVC handler`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		board, err := loadBoard()
		if err != nil {
			return err
		}

		script, err := loadScript(args[0])
		if err != nil {
			return err
		}

		v, err := vm.New(vm.WithConfig(board), vm.WithLogger(stderrLogger(board)))
		if err != nil {
			return err
		}

		if imagePath != "" {
			img, err := loader.Load(imagePath)
			if err != nil {
				return err
			}
			if err := v.LoadImage(img); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		runErr := runScript(v, script, out)
		printState(out, v)
		return runErr
	},
}

// Script is a replayable sequence of trapped operations.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// Step is one trapped operation.
type Step struct {
	Op        string  `yaml:"op"`
	Word      uint32  `yaml:"word"`
	Addr      uint32  `yaml:"addr"`
	Size      int     `yaml:"size"`
	Value     uint32  `yaml:"value"`
	Expect    *uint32 `yaml:"expect"`
	Cycles    uint64  `yaml:"cycles"`
	IRQ       int     `yaml:"irq"`
	Reg       string  `yaml:"reg"`
	FaultType uint32  `yaml:"fault_type"`
	Write     bool    `yaml:"write"`
	Domain    uint32  `yaml:"domain"`
}

func loadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	s := &Script{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return s, nil
}

// runScript executes every step in order and stops at the first error.
func runScript(v *vm.VM, s *Script, out io.Writer) error {
	for i, step := range s.Steps {
		if err := runStep(v, step, out); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	return nil
}

func runStep(v *vm.VM, s Step, out io.Writer) error {
	size := s.Size
	if size == 0 {
		size = 4
	}

	switch s.Op {
	case "mcr", "mrc":
		return v.ExecuteCoproc(s.Word)
	case "store":
		return v.Store(s.Addr, size, s.Value)
	case "load":
		value, err := v.Load(s.Addr, size)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "load 0x%08X = 0x%08X\n", s.Addr, value)
		if s.Expect != nil && *s.Expect != value {
			return fmt.Errorf("expected 0x%08X, got 0x%08X", *s.Expect, value)
		}
		return nil
	case "tick":
		return v.Tick(s.Cycles)
	case "irq":
		return v.RaiseInterrupt(s.IRQ)
	case "deliver":
		delivered, err := v.DeliverPending()
		if err != nil {
			return err
		}
		if delivered {
			fmt.Fprintf(out, "delivered, pc 0x%08X\n", v.Guest().Regs.PC())
		}
		return nil
	case "set":
		return setRegister(&v.Guest().Regs, s.Reg, s.Value)
	case "abort":
		return v.ThrowDataAbort(s.Addr, s.FaultType, s.Write, s.Domain)
	case "svc":
		return v.ServiceCall()
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
}

func setRegister(regs *guest.RegFile, name string, value uint32) error {
	switch strings.ToLower(name) {
	case "cpsr":
		regs.CPSR = value
		return nil
	case "pc":
		regs.SetPC(value)
		return nil
	case "sp":
		regs.WriteReg(guest.SP, value)
		return nil
	case "lr":
		regs.WriteReg(guest.LR, value)
		return nil
	}

	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(name), "r"))
	if err != nil || n < 0 || n > 15 {
		return fmt.Errorf("unknown register %q", name)
	}
	regs.WriteReg(uint8(n), value)
	return nil
}

func printState(w io.Writer, v *vm.VM) {
	g := v.Guest()
	regs := &g.Regs

	fmt.Fprintf(w, "mode %s  cpsr 0x%08X  pc 0x%08X\n", regs.Mode(), regs.CPSR, regs.PC())
	for n := uint8(0); n < 15; n++ {
		fmt.Fprintf(w, "r%-2d 0x%08X", n, regs.ReadReg(n))
		if n%4 == 3 {
			fmt.Fprintln(w)
		} else {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "mmu %v  high vectors %v\n", g.VirtAddrEnabled, g.HighVectors)
	fmt.Fprintf(w, "pending irq %v  data abort %v  prefetch abort %v\n",
		g.IrqPending, g.DataAbtPending, g.PrefetchAbtPending)

	ic := v.INTC()
	for b := 0; b < intc.NumBanks; b++ {
		fmt.Fprintf(w, "intc bank %d  raw 0x%08X  mask 0x%08X  pending 0x%08X\n",
			b, ic.Raw(b), ic.MaskBits(b), ic.Pending(b))
	}

	if err := v.Halted(); err != nil {
		fmt.Fprintf(w, "halted: %v\n", err)
	}
}
