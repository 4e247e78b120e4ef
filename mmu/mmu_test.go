package mmu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hyparm/cp15"
	"github.com/sarchlab/hyparm/guest"
	"github.com/sarchlab/hyparm/mmu"
	"github.com/sarchlab/hyparm/mmu/cache"
)

var _ = Describe("Manager", func() {
	var (
		m    *mmu.Manager
		bank *cp15.Bank
		g    *guest.Context
	)

	BeforeEach(func() {
		m = mmu.New()
		bank = cp15.New(cp15.WithMemoryManager(m))
		g = guest.NewContext(bank)
	})

	write := func(reg cp15.Register, v uint32) {
		Expect(bank.Write(g, reg, v)).To(Succeed())
	}

	Describe("configuration", func() {
		It("should size caches from CCSIDR by default", func() {
			Expect(m.L1D().Config()).To(Equal(cache.DefaultL1DConfig()))
			Expect(m.L1I().Config()).To(Equal(cache.DefaultL1IConfig()))
			Expect(m.L2().Config()).To(Equal(cache.DefaultL2Config()))
		})

		It("should accept explicit geometry and RAM", func() {
			ram := cache.NewRAM()
			small := cache.Config{Size: 1024, Associativity: 2, BlockSize: 32}
			m = mmu.New(mmu.WithCaches(small, small, small), mmu.WithRAM(ram), mmu.WithTLBEntries(8))

			Expect(m.L1D().Config()).To(Equal(small))
			Expect(m.RAM()).To(BeIdenticalTo(ram))
		})
	})

	Describe("translation state", func() {
		It("should follow SCTLR MMU enable edges", func() {
			write(cp15.SCTLR, 0x00C50079)
			Expect(m.State().Enabled).To(BeTrue())
			Expect(g.VirtAddrEnabled).To(BeTrue())

			write(cp15.SCTLR, 0x00C50078)
			Expect(m.State().Enabled).To(BeFalse())
			Expect(g.VirtAddrEnabled).To(BeFalse())
		})

		It("should record TTB, DACR, context ID and alignment checking", func() {
			write(cp15.TTBR0, 0x80004059)
			write(cp15.DACR, 0x55555555)
			write(cp15.CONTEXTID, 0x00000142)
			write(cp15.SCTLR, 0x00C50078)
			write(cp15.SCTLR, 0x00C50078|cp15.SCTLRAlignCheck)

			s := m.State()
			Expect(s.TTB).To(Equal(uint32(0x80004000)))
			Expect(s.DACR).To(Equal(uint32(0x55555555)))
			Expect(s.ASID()).To(Equal(uint8(0x42)))
			Expect(s.AlignCheck).To(BeTrue())
		})
	})

	Describe("data access", func() {
		It("should read and write through the hierarchy", func() {
			m.RAM().Write32(0x1000, 0x11223344)

			v, ok := m.Read(0x1000, 4)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(uint32(0x11223344)))

			Expect(m.Write(0x1000, 4, 0xAABBCCDD)).To(BeTrue())
			Expect(m.RAM().Read32(0x1000)).To(Equal(uint32(0x11223344)))
		})

		It("should refuse unaligned accesses when alignment checking is on", func() {
			m.SetAlignCheck(true)

			_, ok := m.Read(0x1002, 4)
			Expect(ok).To(BeFalse())
			Expect(m.Write(0x1001, 2, 0)).To(BeFalse())

			m.SetAlignCheck(false)
			_, ok = m.Read(0x1002, 4)
			Expect(ok).To(BeTrue())
		})

		It("should fill the TLBs only while translation is on", func() {
			m.Read(0x1000, 4)
			Expect(m.DTLB().Len()).To(Equal(0))

			write(cp15.CONTEXTID, 7)
			write(cp15.SCTLR, 0x00C50079)
			m.Read(0x1000, 4)
			m.Fetch(0x8000)

			Expect(m.DTLB().Lookup(0x1000, 7)).To(BeTrue())
			Expect(m.ITLB().Lookup(0x8000, 7)).To(BeTrue())
		})
	})

	Describe("cache maintenance", func() {
		BeforeEach(func() {
			m.Write(0x2000, 4, 0xCAFEF00D)
		})

		It("should clean to the point of coherency", func() {
			write(cp15.DCCMVAC, 0x2000)

			Expect(m.RAM().Read32(0x2000)).To(Equal(uint32(0xCAFEF00D)))
			Expect(m.L1D().Contains(0x2000)).To(BeTrue())
		})

		It("should clean to the point of unification", func() {
			write(cp15.DCCMVAU, 0x2000)

			Expect(m.L2().IsDirty(0x2000)).To(BeTrue())
			Expect(m.RAM().Read32(0x2000)).To(Equal(uint32(0)))
		})

		It("should invalidate without writing back", func() {
			write(cp15.DCIMVAC, 0x2000)

			Expect(m.L1D().Contains(0x2000)).To(BeFalse())
			v, _ := m.Read(0x2000, 4)
			Expect(v).To(Equal(uint32(0)))
		})

		It("should clean and invalidate", func() {
			write(cp15.DCCIMVAC, 0x2000)

			Expect(m.L1D().Contains(0x2000)).To(BeFalse())
			Expect(m.L2().Contains(0x2000)).To(BeFalse())
			Expect(m.RAM().Read32(0x2000)).To(Equal(uint32(0xCAFEF00D)))
		})

		It("should clean by set/way across both levels", func() {
			l1 := m.L1D()
			l2 := m.L2()
			l1Set := int(0x2000/64) % l1.Config().NumSets()
			l2Set := int(0x2000/64) % l2.Config().NumSets()

			for way := 0; way < l1.Config().Associativity; way++ {
				write(cp15.DCCSW, l1.EncodeSetWay(cache.SetWay{Level: 0, Set: l1Set, Way: way}))
			}
			Expect(l2.IsDirty(0x2000)).To(BeTrue())

			for way := 0; way < l2.Config().Associativity; way++ {
				write(cp15.DCCISW, l2.EncodeSetWay(cache.SetWay{Level: 1, Set: l2Set, Way: way}))
			}
			Expect(l2.Contains(0x2000)).To(BeFalse())
			Expect(m.RAM().Read32(0x2000)).To(Equal(uint32(0xCAFEF00D)))
		})

		It("should invalidate the instruction cache", func() {
			m.RAM().Write32(0x8000, 0xE1A00000)
			Expect(m.Fetch(0x8000)).To(Equal(uint32(0xE1A00000)))

			write(cp15.ICIMVAU, 0x8000)
			Expect(m.L1I().Contains(0x8000)).To(BeFalse())

			m.Fetch(0x8000)
			write(cp15.ICIALLU, 0)
			Expect(m.L1I().Contains(0x8000)).To(BeFalse())
		})
	})

	Describe("barriers and predictors", func() {
		It("should count each barrier", func() {
			write(cp15.CP15ISB, 0)
			write(cp15.CP15DSB, 0)
			write(cp15.CP15DSB, 0)
			write(cp15.CP15DMB, 0)
			write(cp15.BPIALL, 0)

			Expect(m.Barriers()).To(Equal(mmu.Barriers{ISB: 1, DSB: 2, DMB: 1}))
			Expect(m.BranchPredictorFlushes()).To(Equal(uint64(1)))
			Expect(m.MaintenanceCount(cp15.OpDataSyncBarrier)).To(Equal(uint64(2)))
		})
	})

	DescribeTable("TLB maintenance",
		func(reg cp15.Register, operand uint32, itlbLeft, dtlbLeft int) {
			for _, tlb := range []*mmu.TLB{m.ITLB(), m.DTLB()} {
				tlb.Fill(0x1000, 1)
				tlb.Fill(0x2000, 2)
			}

			write(reg, operand)

			Expect(m.ITLB().Len()).To(Equal(itlbLeft))
			Expect(m.DTLB().Len()).To(Equal(dtlbLeft))
		},
		Entry("ITLBIALL", cp15.ITLBIALL, uint32(0), 0, 2),
		Entry("ITLBIMVA", cp15.ITLBIMVA, uint32(0x1001), 1, 2),
		Entry("ITLBIASID", cp15.ITLBIASID, uint32(2), 1, 2),
		Entry("DTLBIALL", cp15.DTLBIALL, uint32(0), 2, 0),
		Entry("DTLBIMVA", cp15.DTLBIMVA, uint32(0x2002), 2, 1),
		Entry("DTLBIASID", cp15.DTLBIASID, uint32(1), 2, 1),
		Entry("TLBIALL", cp15.TLBIALL, uint32(0), 0, 0),
		Entry("TLBIMVA", cp15.TLBIMVA, uint32(0x1001), 1, 1),
		Entry("TLBIASID", cp15.TLBIASID, uint32(2), 1, 1),
		Entry("MVA with the wrong ASID", cp15.TLBIMVA, uint32(0x1002), 2, 2),
	)
})
