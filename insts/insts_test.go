package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/insts"
)

var _ = Describe("Insts Package", func() {
	It("should have a zero Instruction that is not legal", func() {
		var i insts.Instruction
		Expect(i.IsLegal()).To(BeFalse())
		Expect(i.Class).To(Equal(insts.ClassNone))
	})

	It("should name operations by their mnemonic", func() {
		Expect(insts.OpAMOMAXU.String()).To(Equal("amomaxu.w"))
		Expect(insts.OpFENCEI.String()).To(Equal("fence.i"))
		Expect(insts.Op(250).String()).To(Equal("unknown"))
	})

	It("should describe causes", func() {
		Expect(insts.CauseIllegalInst.Describe(false)).To(Equal("illegal instruction"))
		Expect(insts.InterruptMTimer.Describe(true)).To(Equal("machine timer interrupt"))
		Expect(insts.Cause(14).Describe(false)).To(Equal("reserved"))
	})

	It("should assemble little-endian program bytes", func() {
		program := insts.Assemble(0x00500093, 0x0000006F)
		Expect(program).To(Equal([]byte{0x93, 0x00, 0x50, 0x00, 0x6F, 0x00, 0x00, 0x00}))
	})
})
