package muldiv_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/timing/muldiv"
)

type unit interface {
	Tick(in muldiv.Input)
	Ready() bool
	Result() uint32
}

// runUntilReady holds valid high until the unit pulses ready and returns
// the result and the number of cycles it took.
func runUntilReady(u unit, op insts.Op, a, b uint32) (uint32, int) {
	in := muldiv.Input{Op: op, A: a, B: b, Valid: true}
	for cycle := 0; cycle < 100; cycle++ {
		if u.Ready() {
			return u.Result(), cycle
		}
		u.Tick(in)
	}
	Fail("unit never became ready")
	return 0, -1
}

var operands = []uint32{
	0, 1, 2, 3, 7, 0xFFFFFFFF, 0xFFFFFFFE, 0x80000000, 0x7FFFFFFF,
	0x12345678, 0xDEADBEEF, 0x0000FFFF, 0xFFFF0000,
}

var _ = Describe("Multiplier", func() {
	var m *muldiv.Multiplier

	BeforeEach(func() {
		m = muldiv.NewMultiplier()
	})

	It("should pulse ready after the fixed latency", func() {
		_, cycles := runUntilReady(m, insts.OpMUL, 6, 7)
		Expect(cycles).To(Equal(muldiv.MultiplierLatency))
		Expect(m.Result()).To(Equal(uint32(42)))
	})

	It("should pulse ready exactly once", func() {
		runUntilReady(m, insts.OpMUL, 6, 7)
		m.Tick(muldiv.Input{Op: insts.OpMUL, A: 6, B: 7})
		Expect(m.Ready()).To(BeFalse())
		Expect(m.Busy()).To(BeFalse())
	})

	It("should not restart while busy", func() {
		m.Tick(muldiv.Input{Op: insts.OpMUL, A: 2, B: 3, Valid: true})
		Expect(m.Busy()).To(BeTrue())
		for i := 0; i < 3; i++ {
			m.Tick(muldiv.Input{Op: insts.OpMUL, A: 2, B: 3, Valid: true})
			Expect(m.Ready()).To(BeFalse())
		}
		m.Tick(muldiv.Input{Op: insts.OpMUL, A: 2, B: 3, Valid: true})
		Expect(m.Ready()).To(BeTrue())
	})

	DescribeTable("should match the architectural result",
		func(op insts.Op) {
			for _, a := range operands {
				for _, b := range operands {
					m.Reset()
					result, _ := runUntilReady(m, op, a, b)
					Expect(result).To(Equal(emu.MulDiv(op, a, b)),
						"%v 0x%08X, 0x%08X", op, a, b)
				}
			}
		},
		Entry("mul", insts.OpMUL),
		Entry("mulh", insts.OpMULH),
		Entry("mulhsu", insts.OpMULHSU),
		Entry("mulhu", insts.OpMULHU),
	)
})

var _ = Describe("Divider", func() {
	var d *muldiv.Divider

	BeforeEach(func() {
		d = muldiv.NewDivider()
	})

	It("should pulse ready after the fixed latency", func() {
		result, cycles := runUntilReady(d, insts.OpDIVU, 100, 7)
		Expect(cycles).To(Equal(muldiv.DividerLatency))
		Expect(result).To(Equal(uint32(14)))

		d.Tick(muldiv.Input{Op: insts.OpDIVU, A: 100, B: 7})
		Expect(d.Ready()).To(BeFalse())
	})

	It("should follow the division by zero rules", func() {
		q, _ := runUntilReady(d, insts.OpDIV, 5, 0)
		Expect(q).To(Equal(uint32(0xFFFFFFFF)))

		d.Reset()
		r, _ := runUntilReady(d, insts.OpREM, 5, 0)
		Expect(r).To(Equal(uint32(5)))
	})

	It("should follow the signed overflow rules", func() {
		q, _ := runUntilReady(d, insts.OpDIV, 0x80000000, 0xFFFFFFFF)
		Expect(q).To(Equal(uint32(0x80000000)))

		d.Reset()
		r, _ := runUntilReady(d, insts.OpREM, 0x80000000, 0xFFFFFFFF)
		Expect(r).To(BeZero())
	})

	It("should accept back-to-back operations", func() {
		q, _ := runUntilReady(d, insts.OpDIVU, 9, 3)
		Expect(q).To(Equal(uint32(3)))
		d.Tick(muldiv.Input{})

		q, cycles := runUntilReady(d, insts.OpDIVU, 10, 5)
		Expect(q).To(Equal(uint32(2)))
		Expect(cycles).To(Equal(muldiv.DividerLatency))
	})

	DescribeTable("should match the architectural result",
		func(op insts.Op) {
			for _, a := range operands {
				for _, b := range operands {
					d.Reset()
					result, _ := runUntilReady(d, op, a, b)
					Expect(result).To(Equal(emu.MulDiv(op, a, b)),
						"%v 0x%08X, 0x%08X", op, a, b)
				}
			}
		},
		Entry("div", insts.OpDIV),
		Entry("divu", insts.OpDIVU),
		Entry("rem", insts.OpREM),
		Entry("remu", insts.OpREMU),
	)
})
