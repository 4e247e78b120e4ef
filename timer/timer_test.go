package timer_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hyparm/fault"
	"github.com/sarchlab/hyparm/timer"
)

var _ = Describe("Periodic", func() {
	var (
		ticks []int
		p     *timer.Periodic
	)

	sink := func(irq int) error {
		ticks = append(ticks, irq)
		return nil
	}

	BeforeEach(func() {
		ticks = nil
		var err error
		p, err = timer.New(38, sink, timer.WithPeriod(4))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should start disabled", func() {
		Expect(p.Enabled()).To(BeFalse())
		Expect(p.RunCycles(100)).To(Succeed())
		Expect(ticks).To(BeEmpty())
		Expect(p.Stats().Cycles).To(Equal(uint64(0)))
	})

	It("should fire every period cycles while enabled", func() {
		p.Enable()

		Expect(p.RunCycles(3)).To(Succeed())
		Expect(ticks).To(BeEmpty())

		Expect(p.Tick()).To(Succeed())
		Expect(ticks).To(Equal([]int{38}))

		Expect(p.RunCycles(8)).To(Succeed())
		Expect(p.Fired()).To(Equal(uint64(3)))
		Expect(p.Stats().Cycles).To(Equal(uint64(12)))
	})

	It("should stop firing when disabled", func() {
		p.Enable()
		Expect(p.RunCycles(4)).To(Succeed())
		p.Disable()
		Expect(p.RunCycles(8)).To(Succeed())

		Expect(p.Fired()).To(Equal(uint64(1)))
	})

	It("should restart the count when re-enabled", func() {
		p.Enable()
		Expect(p.RunCycles(3)).To(Succeed())
		p.Disable()
		p.Enable()
		Expect(p.RunCycles(3)).To(Succeed())

		Expect(p.Fired()).To(Equal(uint64(0)))
	})

	It("should stop at the first sink error", func() {
		boom := errors.New("boom")
		calls := 0
		p, _ = timer.New(38, func(int) error {
			calls++
			return boom
		}, timer.WithPeriod(1))
		p.Enable()

		Expect(p.RunCycles(10)).To(MatchError(boom))
		Expect(calls).To(Equal(1))
	})

	It("should reset to a disabled state", func() {
		p.Enable()
		Expect(p.RunCycles(4)).To(Succeed())
		p.Reset()

		Expect(p.Enabled()).To(BeFalse())
		Expect(p.Stats()).To(Equal(timer.Stats{}))
	})

	It("should reject a zero period or a missing sink", func() {
		_, err := timer.New(38, sink, timer.WithPeriod(0))
		Expect(errors.Is(err, fault.ErrConfiguration)).To(BeTrue())

		_, err = timer.New(38, nil)
		Expect(errors.Is(err, fault.ErrConfiguration)).To(BeTrue())
	})

	It("should default the period", func() {
		p, _ = timer.New(38, sink)
		Expect(p.Period()).To(Equal(uint64(timer.DefaultPeriod)))
		Expect(p.IRQ()).To(Equal(38))
	})
})
