package exception_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hyparm/cp15"
	"github.com/sarchlab/hyparm/exception"
	"github.com/sarchlab/hyparm/fault"
	"github.com/sarchlab/hyparm/guest"
	"github.com/sarchlab/hyparm/intc"
)

var _ = Describe("Engine", func() {
	var (
		engine *exception.Engine
		g      *guest.Context
		ic     *intc.Controller
	)

	BeforeEach(func() {
		engine = exception.New()
		g = guest.NewContext(cp15.New())
		ic = intc.New()
		g.VirtAddrEnabled = true
	})

	Describe("DeliverInterrupt", func() {
		It("should enter IRQ mode at the low vector", func() {
			g.Regs.CPSR = 0x93
			g.Regs.SetPC(0x8000)
			g.IrqPending = true

			Expect(engine.DeliverInterrupt(g)).To(Succeed())

			Expect(g.Regs.SPSRIRQ).To(Equal(uint32(0x93)))
			Expect(g.Regs.Mode()).To(Equal(guest.ModeIRQ))
			Expect(g.Regs.CPSR & guest.PSRIRQMask).NotTo(BeZero())
			Expect(g.Regs.CPSR & guest.PSRFIQMask).NotTo(BeZero())
			Expect(g.Regs.Banked(guest.ModeIRQ, guest.LR)).To(Equal(uint32(0x8004)))
			Expect(g.Regs.PC()).To(Equal(uint32(0x18)))
			Expect(g.IrqPending).To(BeFalse())
			Expect(engine.Stats().Interrupts).To(Equal(uint64(1)))
		})

		It("should keep the interrupted mode's registers intact", func() {
			g.Regs.CPSR = uint32(guest.ModeUSR) | guest.PSRZ
			g.Regs.WriteReg(guest.LR, 0x1234)
			g.Regs.SetPC(0x400)
			g.IrqPending = true

			Expect(engine.DeliverInterrupt(g)).To(Succeed())
			Expect(g.Regs.Banked(guest.ModeUSR, guest.LR)).To(Equal(uint32(0x1234)))
			Expect(g.Regs.CPSR & guest.PSRZ).NotTo(BeZero())
		})

		It("should use the high vector base", func() {
			g.HighVectors = true
			g.IrqPending = true
			Expect(engine.DeliverInterrupt(g)).To(Succeed())
			Expect(g.Regs.PC()).To(Equal(uint32(0xFFFF0018)))
		})

		It("should honor a configured high vector base", func() {
			e := exception.New(exception.WithHighVectorBase(0xFFFE0000))
			g.HighVectors = true
			Expect(e.VectorBase(g)).To(Equal(uint32(0xFFFE0000)))
		})

		It("should fail without a pending interrupt", func() {
			err := engine.DeliverInterrupt(g)
			Expect(errors.Is(err, fault.ErrConfiguration)).To(BeTrue())
		})

		It("should fail with virtual memory off", func() {
			g.IrqPending = true
			g.VirtAddrEnabled = false
			err := engine.DeliverInterrupt(g)
			Expect(errors.Is(err, fault.ErrUnmodeled)).To(BeTrue())
			Expect(g.IrqPending).To(BeTrue())
		})
	})

	Describe("Data aborts", func() {
		It("should record the fault without changing mode", func() {
			g.Regs.CPSR = 0x13
			Expect(engine.ThrowDataAbort(g, 0xC000_1000, 0x15, true, 3)).To(Succeed())

			dfsr, _ := g.CP15.Read(cp15.DFSR)
			dfar, _ := g.CP15.Read(cp15.DFAR)
			Expect(dfsr).To(Equal(uint32(0x5 | 0x400 | 3<<4 | 0x800)))
			Expect(dfar).To(Equal(uint32(0xC000_1000)))
			Expect(g.DataAbtPending).To(BeTrue())
			Expect(g.Regs.CPSR).To(Equal(uint32(0x13)))
		})

		DescribeTable("DFSR encoding",
			func(ft uint32, isWrite bool, domain, want uint32) {
				Expect(exception.DataFaultStatus(ft, isWrite, domain)).To(Equal(want))
			},
			Entry("translation fault read", uint32(0x5), false, uint32(0), uint32(0x005)),
			Entry("permission fault write", uint32(0xD), true, uint32(2), uint32(0x82D)),
			Entry("external abort bit", uint32(0x16), false, uint32(0), uint32(0x406)),
		)

		It("should deliver to the abort vector with LR at PC+8", func() {
			g.Regs.CPSR = 0x10
			g.Regs.SetPC(0x9000)
			Expect(engine.ThrowDataAbort(g, 0, 5, false, 0)).To(Succeed())
			Expect(engine.DeliverAbort(g)).To(Succeed())

			Expect(g.Regs.SPSRABT).To(Equal(uint32(0x10)))
			Expect(g.Regs.Mode()).To(Equal(guest.ModeABT))
			Expect(g.Regs.CPSR & (guest.PSRIRQMask | guest.PSRFIQMask)).To(Equal(guest.PSRIRQMask | guest.PSRFIQMask))
			Expect(g.Regs.ABT[1]).To(Equal(uint32(0x9008)))
			Expect(g.Regs.PC()).To(Equal(uint32(0x10)))
			Expect(g.DataAbtPending).To(BeFalse())
		})

		It("should fail to deliver without a pending abort", func() {
			Expect(engine.DeliverAbort(g)).To(HaveOccurred())
		})
	})

	Describe("Prefetch aborts", func() {
		It("should record IFSR and IFAR and deliver with LR at PC+4", func() {
			g.Regs.CPSR = 0x1F
			g.Regs.SetPC(0x7000)
			Expect(engine.ThrowPrefetchAbort(g, 0x7000, 0x15)).To(Succeed())

			ifsr, _ := g.CP15.Read(cp15.IFSR)
			ifar, _ := g.CP15.Read(cp15.IFAR)
			Expect(ifsr).To(Equal(uint32(0x405)))
			Expect(ifar).To(Equal(uint32(0x7000)))
			Expect(g.PrefetchAbtPending).To(BeTrue())

			Expect(engine.DeliverPrefetchAbort(g)).To(Succeed())
			Expect(g.Regs.ABT[1]).To(Equal(uint32(0x7004)))
			Expect(g.Regs.PC()).To(Equal(uint32(0x0C)))
			Expect(g.Regs.CPSR & guest.PSRAbtMask).NotTo(BeZero())
			Expect(g.PrefetchAbtPending).To(BeFalse())
		})
	})

	Describe("Service calls", func() {
		It("should enter SVC mode with LR after the SVC instruction", func() {
			g.Regs.CPSR = 0x10
			g.Regs.SetPC(0x2000)
			engine.DeliverServiceCall(g)

			Expect(g.Regs.SPSRSVC).To(Equal(uint32(0x10)))
			Expect(g.Regs.Mode()).To(Equal(guest.ModeSVC))
			Expect(g.Regs.SVC[1]).To(Equal(uint32(0x2004)))
			Expect(g.Regs.PC()).To(Equal(uint32(0x08)))
			Expect(g.IRQsMasked()).To(BeTrue())
			Expect(g.Regs.CPSR & guest.PSRFIQMask).To(BeZero())
		})
	})

	Describe("TickEvent", func() {
		It("should raise the guest timer and set IRQ pending when IRQs are enabled", func() {
			g.Regs.CPSR = 0x13
			Expect(engine.TickEvent(g, ic, intc.IRQGPT2)).To(Succeed())
			Expect(ic.Raw(1) & (1 << 5)).NotTo(BeZero())
			Expect(g.IrqPending).To(BeTrue())
			Expect(engine.Stats().Ticks).To(Equal(uint64(1)))
		})

		It("should only raise the line while IRQs are masked", func() {
			g.Regs.CPSR = 0x93
			Expect(engine.TickEvent(g, ic, intc.IRQGPT2)).To(Succeed())
			Expect(ic.Raw(1) & (1 << 5)).NotTo(BeZero())
			Expect(g.IrqPending).To(BeFalse())
		})

		It("should fault on other timer lines", func() {
			err := engine.TickEvent(g, ic, intc.IRQGPT1)
			Expect(errors.Is(err, fault.ErrUnmodeled)).To(BeTrue())
		})

		It("should follow configured timer lines", func() {
			e := exception.New(exception.WithTimerLines(40, 41))
			g.Regs.CPSR = 0x13
			Expect(e.TickEvent(g, ic, 40)).To(Succeed())
			Expect(ic.Raw(1) & (1 << 9)).NotTo(BeZero())
		})
	})

	Describe("ThrowInterrupt", func() {
		It("should set IRQ pending for an unmasked device line", func() {
			g.Regs.CPSR = 0x13
			Expect(ic.Unmask(intc.IRQUART3)).To(Succeed())
			Expect(engine.ThrowInterrupt(g, ic, intc.IRQUART3)).To(Succeed())
			Expect(g.IrqPending).To(BeTrue())
		})

		It("should not set IRQ pending for a masked line", func() {
			g.Regs.CPSR = 0x13
			Expect(engine.ThrowInterrupt(g, ic, intc.IRQMMC1)).To(Succeed())
			Expect(ic.Raw(2)).NotTo(BeZero())
			Expect(g.IrqPending).To(BeFalse())
			Expect(engine.Stats().Dropped).To(Equal(uint64(1)))
		})

		It("should fault for lines without a device model", func() {
			err := engine.ThrowInterrupt(g, ic, intc.IRQGPIO1)
			Expect(errors.Is(err, fault.ErrUnmodeled)).To(BeTrue())
		})
	})
})
