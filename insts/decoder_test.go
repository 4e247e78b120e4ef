package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hyparm/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("Register transfers", func() {
		// MRC p15, 0, r0, c1, c0, 0 -> 0xEE110F10
		// Encoding: cond=1110, 1110, opc1=000, L=1, CRn=1, Rt=0, coproc=15, opc2=0, 1, CRm=0
		It("should decode MRC p15, 0, r0, c1, c0, 0", func() {
			inst := decoder.Decode(0xEE110F10)

			Expect(inst.Op).To(Equal(insts.OpMRC))
			Expect(inst.Format).To(Equal(insts.FormatRegTransfer))
			Expect(inst.Cond).To(Equal(insts.CondAL))
			Expect(inst.Coproc).To(Equal(uint8(15)))
			Expect(inst.CRn).To(Equal(uint8(1)))
			Expect(inst.Opc1).To(Equal(uint8(0)))
			Expect(inst.CRm).To(Equal(uint8(0)))
			Expect(inst.Opc2).To(Equal(uint8(0)))
			Expect(inst.Rt).To(Equal(uint8(0)))
		})

		// MCR p15, 0, r1, c2, c0, 0 -> 0xEE021F10
		It("should decode MCR p15, 0, r1, c2, c0, 0", func() {
			inst := decoder.Decode(0xEE021F10)

			Expect(inst.Op).To(Equal(insts.OpMCR))
			Expect(inst.CRn).To(Equal(uint8(2)))
			Expect(inst.Rt).To(Equal(uint8(1)))
		})

		// MCR p15, 0, r0, c7, c10, 4 (DSB) -> 0xEE070F9A
		It("should decode MCR p15, 0, r0, c7, c10, 4", func() {
			inst := decoder.Decode(0xEE070F9A)

			Expect(inst.Op).To(Equal(insts.OpMCR))
			Expect(inst.CRn).To(Equal(uint8(7)))
			Expect(inst.CRm).To(Equal(uint8(10)))
			Expect(inst.Opc2).To(Equal(uint8(4)))
		})

		// MRC p15, 1, r0, c0, c0, 0 (CCSIDR) -> 0xEE300F10
		It("should decode opc1", func() {
			inst := decoder.Decode(0xEE300F10)

			Expect(inst.Op).To(Equal(insts.OpMRC))
			Expect(inst.Opc1).To(Equal(uint8(1)))
			Expect(inst.CRn).To(Equal(uint8(0)))
		})

		// MRCNE p15, 0, r2, c13, c0, 3 -> 0x1E1D2F70
		It("should keep the condition code", func() {
			inst := decoder.Decode(0x1E1D2F70)

			Expect(inst.Op).To(Equal(insts.OpMRC))
			Expect(inst.Cond).To(Equal(insts.Cond(0b0001)))
			Expect(inst.CRn).To(Equal(uint8(13)))
			Expect(inst.Opc2).To(Equal(uint8(3)))
			Expect(inst.Rt).To(Equal(uint8(2)))
			Expect(inst.Unconditional).To(BeFalse())
		})

		// MCR2 p15, 0, r0, c1, c0, 0 -> 0xFE010F10
		It("should flag the unconditional variant", func() {
			inst := decoder.Decode(0xFE010F10)

			Expect(inst.Op).To(Equal(insts.OpMCR))
			Expect(inst.Unconditional).To(BeTrue())
		})

		// MRC p14, 0, r0, c0, c0, 0 -> 0xEE100E10
		It("should report other coprocessors", func() {
			inst := decoder.Decode(0xEE100E10)

			Expect(inst.Op).To(Equal(insts.OpMRC))
			Expect(inst.Coproc).To(Equal(uint8(14)))
		})
	})

	Describe("Double register transfers", func() {
		// MCRR p15, 0, r0, r1, c2 -> 0xEC410F02
		It("should decode MCRR", func() {
			inst := decoder.Decode(0xEC410F02)

			Expect(inst.Op).To(Equal(insts.OpMCRR))
			Expect(inst.Format).To(Equal(insts.FormatDoubleTransfer))
			Expect(inst.Rt).To(Equal(uint8(0)))
			Expect(inst.Rt2).To(Equal(uint8(1)))
			Expect(inst.Coproc).To(Equal(uint8(15)))
			Expect(inst.CRm).To(Equal(uint8(2)))
		})

		// MRRC p15, 0, r0, r1, c2 -> 0xEC510F02
		It("should decode MRRC", func() {
			inst := decoder.Decode(0xEC510F02)

			Expect(inst.Op).To(Equal(insts.OpMRRC))
		})
	})

	Describe("Data operations", func() {
		// CDP p15, 0, c1, c2, c3, 0 -> 0xEE021F03
		It("should decode CDP", func() {
			inst := decoder.Decode(0xEE021F03)

			Expect(inst.Op).To(Equal(insts.OpCDP))
			Expect(inst.Format).To(Equal(insts.FormatDataOp))
			Expect(inst.CRd).To(Equal(uint8(1)))
			Expect(inst.CRn).To(Equal(uint8(2)))
			Expect(inst.CRm).To(Equal(uint8(3)))
		})
	})

	Describe("Loads and stores", func() {
		// LDC p14, c5, [r1, #4] -> 0xED915E01
		It("should decode LDC", func() {
			inst := decoder.Decode(0xED915E01)

			Expect(inst.Op).To(Equal(insts.OpLDC))
			Expect(inst.Format).To(Equal(insts.FormatLoadStore))
			Expect(inst.Rn).To(Equal(uint8(1)))
			Expect(inst.CRd).To(Equal(uint8(5)))
			Expect(inst.Coproc).To(Equal(uint8(14)))
			Expect(inst.Offset).To(Equal(uint32(4)))
			Expect(inst.Indexed).To(BeTrue())
			Expect(inst.Up).To(BeTrue())
			Expect(inst.Writeback).To(BeFalse())
		})

		// STC p14, c5, [r1, #4] -> 0xED815E01
		It("should decode STC", func() {
			inst := decoder.Decode(0xED815E01)

			Expect(inst.Op).To(Equal(insts.OpSTC))
		})

		It("should not decode the undefined P=U=W=0 space", func() {
			inst := decoder.Decode(0xEC015E01)

			Expect(inst.Op).To(Equal(insts.OpUnknown))
		})
	})

	Describe("Other instructions", func() {
		// ADD r0, r1, r2 -> 0xE0810002
		It("should not decode data processing", func() {
			inst := decoder.Decode(0xE0810002)

			Expect(inst.Op).To(Equal(insts.OpUnknown))
			Expect(inst.Format).To(Equal(insts.FormatUnknown))
		})
	})
})
