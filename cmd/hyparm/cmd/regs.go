package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hyparm/cp15"
)

func init() {
	rootCmd.AddCommand(regsCmd)
}

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "Print the CP15 reset values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printRegisters(cmd.OutOrStdout(), cp15.New())
		return nil
	},
}

func printRegisters(w io.Writer, bank *cp15.Bank) {
	fmt.Fprintf(w, "%-10s %-16s %s\n", "NAME", "CRn,opc1,CRm,opc2", "VALUE")
	for _, e := range bank.Snapshot() {
		crn, opc1, crm, opc2 := e.Reg.Coords()
		coords := fmt.Sprintf("c%d,%d,c%d,%d", crn, opc1, crm, opc2)
		fmt.Fprintf(w, "%-10s %-16s 0x%08X\n", e.Reg, coords, e.Value)
	}
}
