package guest_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hyparm/guest"
)

var _ = Describe("ConditionPassed", func() {
	var regs *guest.RegFile

	BeforeEach(func() {
		regs = &guest.RegFile{CPSR: uint32(guest.ModeSVC)}
	})

	flags := func(n, z, c, v bool) {
		regs.CPSR &^= guest.PSRN | guest.PSRZ | guest.PSRC | guest.PSRV
		if n {
			regs.CPSR |= guest.PSRN
		}
		if z {
			regs.CPSR |= guest.PSRZ
		}
		if c {
			regs.CPSR |= guest.PSRC
		}
		if v {
			regs.CPSR |= guest.PSRV
		}
	}

	DescribeTable("flag combinations",
		func(cond guest.Cond, n, z, c, v, want bool) {
			flags(n, z, c, v)
			Expect(regs.ConditionPassed(cond)).To(Equal(want))
		},
		Entry("EQ with Z", guest.CondEQ, false, true, false, false, true),
		Entry("EQ without Z", guest.CondEQ, false, false, false, false, false),
		Entry("NE without Z", guest.CondNE, false, false, false, false, true),
		Entry("CS with C", guest.CondCS, false, false, true, false, true),
		Entry("CC with C", guest.CondCC, false, false, true, false, false),
		Entry("MI with N", guest.CondMI, true, false, false, false, true),
		Entry("PL with N", guest.CondPL, true, false, false, false, false),
		Entry("VS with V", guest.CondVS, false, false, false, true, true),
		Entry("VC with V", guest.CondVC, false, false, false, true, false),
		Entry("HI with C and not Z", guest.CondHI, false, false, true, false, true),
		Entry("HI with C and Z", guest.CondHI, false, true, true, false, false),
		Entry("LS with Z", guest.CondLS, false, true, true, false, true),
		Entry("GE with N == V", guest.CondGE, true, false, false, true, true),
		Entry("LT with N != V", guest.CondLT, true, false, false, false, true),
		Entry("GT with Z", guest.CondGT, false, true, false, false, false),
		Entry("GT with N == V and not Z", guest.CondGT, false, false, false, false, true),
		Entry("LE with N != V", guest.CondLE, false, false, false, true, true),
		Entry("AL", guest.CondAL, false, false, false, false, true),
		Entry("NV", guest.CondNV, true, true, true, true, true),
	)
})
