package emu_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
)

// exitSequence sets a0 to code and performs the exit syscall.
func exitSequence(code int32) []uint32 {
	return []uint32{
		insts.EncodeADDI(emu.RegA0, 0, code),
		insts.EncodeADDI(emu.RegA7, 0, int32(emu.SyscallExit)),
		insts.EncodeECALL(),
	}
}

var _ = Describe("Emulator", func() {
	var (
		e         *emu.Emulator
		stdoutBuf *bytes.Buffer
		stderrBuf *bytes.Buffer
	)

	BeforeEach(func() {
		stdoutBuf = &bytes.Buffer{}
		stderrBuf = &bytes.Buffer{}
		e = emu.NewEmulator(
			emu.WithStdout(stdoutBuf),
			emu.WithStderr(stderrBuf),
		)
	})

	load := func(words ...uint32) {
		e.LoadProgram(0x1000, insts.Assemble(words...))
	}

	Describe("NewEmulator", func() {
		It("should create an emulator with initialized components", func() {
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory()).NotTo(BeNil())
			Expect(e.InstructionCount()).To(BeZero())
		})

		It("should apply the stack pointer option", func() {
			e = emu.NewEmulator(emu.WithStackPointer(0x8000))
			Expect(e.RegFile().ReadReg(emu.RegSP)).To(Equal(uint32(0x8000)))
		})
	})

	Describe("LoadProgram", func() {
		It("should set the PC and copy the bytes", func() {
			e.LoadProgram(0x2000, []byte{0xDE, 0xAD, 0xBE, 0xEF})
			Expect(e.RegFile().PC).To(Equal(uint32(0x2000)))
			Expect(e.Memory().Read8(0x2001)).To(Equal(byte(0xAD)))
		})

		It("should adopt a prepared memory image", func() {
			memory := emu.NewMemory()
			memory.LoadProgram(0x3000, insts.Assemble(insts.EncodeADDI(1, 0, 9)))
			e.LoadProgram(0x3000, memory)

			Expect(e.Step().Err).NotTo(HaveOccurred())
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(9)))
			Expect(e.Memory()).To(BeIdenticalTo(memory))
		})
	})

	Describe("Step", func() {
		It("should execute the add-then-loop scenario", func() {
			load(
				insts.EncodeADDI(1, 0, 5),
				insts.EncodeADD(2, 1, 1),
				insts.EncodeJAL(0, 0),
			)

			for i := 0; i < 3; i++ {
				Expect(e.Step().Err).NotTo(HaveOccurred())
			}
			Expect(e.RegFile().ReadReg(2)).To(Equal(uint32(10)))
			Expect(e.RegFile().PC).To(Equal(uint32(0x1008)))

			Expect(e.Step().Err).NotTo(HaveOccurred())
			Expect(e.RegFile().PC).To(Equal(uint32(0x1008)))
			Expect(e.RegFile().ReadReg(2)).To(Equal(uint32(10)))
		})

		It("should write the return address on JAL and JALR", func() {
			load(
				insts.EncodeJAL(1, 8),
				insts.EncodeADDI(0, 0, 0),
				insts.EncodeJALR(5, 1, 4),
			)

			e.Step()
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(0x1004)))
			Expect(e.RegFile().PC).To(Equal(uint32(0x1008)))

			e.Step()
			Expect(e.RegFile().ReadReg(5)).To(Equal(uint32(0x100C)))
			Expect(e.RegFile().PC).To(Equal(uint32(0x1008)))
		})

		It("should trap on a misaligned branch target without writing rd", func() {
			load(insts.EncodeJAL(1, 6))

			result := e.Step()

			var trap *emu.Trap
			Expect(errors.As(result.Err, &trap)).To(BeTrue())
			Expect(trap.Cause).To(Equal(insts.CauseInstAddrMisaligned))
			Expect(trap.Value).To(Equal(uint32(0x1006)))
			Expect(e.RegFile().ReadReg(1)).To(BeZero())
			Expect(e.RegFile().PC).To(Equal(uint32(0x1000)))
		})

		It("should not redirect on an untaken branch", func() {
			e.RegFile().WriteReg(1, 1)
			load(insts.EncodeBEQ(1, 0, 0x100))

			e.Step()
			Expect(e.RegFile().PC).To(Equal(uint32(0x1004)))
		})

		It("should load and store through memory", func() {
			e.RegFile().WriteReg(1, 0x4000)
			e.RegFile().WriteReg(2, 0xCAFEBABE)
			load(
				insts.EncodeSW(2, 1, 4),
				insts.EncodeLoad(insts.Funct3HU, 3, 1, 6),
				insts.EncodeLoad(insts.Funct3B, 4, 1, 4),
			)

			for i := 0; i < 3; i++ {
				Expect(e.Step().Err).NotTo(HaveOccurred())
			}
			Expect(e.Memory().Read32(0x4004)).To(Equal(uint32(0xCAFEBABE)))
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(0xCAFE)))
			Expect(e.RegFile().ReadReg(4)).To(Equal(uint32(0xFFFFFFBE)))
		})

		It("should trap on misaligned loads and stores", func() {
			e.RegFile().WriteReg(1, 0x4001)
			load(insts.EncodeLW(3, 1, 0))

			var trap *emu.Trap
			Expect(errors.As(e.Step().Err, &trap)).To(BeTrue())
			Expect(trap.Cause).To(Equal(insts.CauseLoadAddrMisaligned))
			Expect(trap.Value).To(Equal(uint32(0x4001)))

			e.Reset()
			e.RegFile().WriteReg(1, 0x4002)
			load(insts.EncodeSW(0, 1, 0))
			Expect(errors.As(e.Step().Err, &trap)).To(BeTrue())
			Expect(trap.Cause).To(Equal(insts.CauseStoreAMOAddrMisaligned))
		})

		It("should report illegal instructions", func() {
			load(0xFFFFFFFF)

			var trap *emu.Trap
			Expect(errors.As(e.Step().Err, &trap)).To(BeTrue())
			Expect(trap.Cause).To(Equal(insts.CauseIllegalInst))
			Expect(trap.Value).To(Equal(uint32(0xFFFFFFFF)))
			Expect(e.InstructionCount()).To(BeZero())
		})

		It("should execute multiply and divide", func() {
			e.RegFile().WriteReg(1, 7)
			e.RegFile().WriteReg(2, 0xFFFFFFFE)
			load(
				insts.EncodeMulDiv(insts.Funct3MUL, 3, 1, 2),
				insts.EncodeMulDiv(insts.Funct3DIV, 4, 1, 2),
				insts.EncodeMulDiv(insts.Funct3REM, 5, 1, 2),
			)

			for i := 0; i < 3; i++ {
				e.Step()
			}
			Expect(int32(e.RegFile().ReadReg(3))).To(Equal(int32(-14)))
			Expect(int32(e.RegFile().ReadReg(4))).To(Equal(int32(-3)))
			Expect(e.RegFile().ReadReg(5)).To(Equal(uint32(1)))
		})

		It("should read-modify-write CSRs", func() {
			e.RegFile().WriteReg(1, 0b1010)
			load(
				insts.EncodeCSR(insts.Funct3CSRRW, 0, insts.CSRMScratch, 1),
				insts.EncodeCSR(insts.Funct3CSRRSI, 2, insts.CSRMScratch, 0b0101),
				insts.EncodeCSR(insts.Funct3CSRRC, 3, insts.CSRMScratch, 1),
				insts.EncodeCSR(insts.Funct3CSRRS, 4, insts.CSRMScratch, 0),
			)

			for i := 0; i < 4; i++ {
				e.Step()
			}
			Expect(e.RegFile().ReadReg(2)).To(Equal(uint32(0b1010)))
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(0b1111)))
			Expect(e.RegFile().ReadReg(4)).To(Equal(uint32(0b0101)))
		})
	})

	Describe("Atomics", func() {
		BeforeEach(func() {
			e.RegFile().WriteReg(1, 0x5000)
			e.RegFile().WriteReg(2, 3)
			e.Memory().Write32(0x5000, 10)
		})

		It("should succeed a store-conditional after a load-reserved", func() {
			load(insts.EncodeLR(3, 1), insts.EncodeSC(4, 1, 2))
			e.Step()
			e.Step()
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(10)))
			Expect(e.RegFile().ReadReg(4)).To(Equal(uint32(0)))
			Expect(e.Memory().Read32(0x5000)).To(Equal(uint32(3)))
		})

		It("should fail a store-conditional after an intervening store", func() {
			load(insts.EncodeLR(3, 1), insts.EncodeSW(0, 1, 0), insts.EncodeSC(4, 1, 2))
			for i := 0; i < 3; i++ {
				e.Step()
			}
			Expect(e.RegFile().ReadReg(4)).To(Equal(uint32(1)))
			Expect(e.Memory().Read32(0x5000)).To(Equal(uint32(0)))
		})

		It("should fail a second store-conditional", func() {
			load(insts.EncodeLR(3, 1), insts.EncodeSC(4, 1, 2), insts.EncodeSC(5, 1, 0))
			for i := 0; i < 3; i++ {
				e.Step()
			}
			Expect(e.RegFile().ReadReg(5)).To(Equal(uint32(1)))
			Expect(e.Memory().Read32(0x5000)).To(Equal(uint32(3)))
		})

		It("should return the old value of an AMO", func() {
			load(insts.EncodeAMO(insts.Funct5AMOADD, 3, 1, 2))
			e.Step()
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(10)))
			Expect(e.Memory().Read32(0x5000)).To(Equal(uint32(13)))
		})
	})

	Describe("Run", func() {
		It("should stop with the exit code", func() {
			load(exitSequence(42)...)
			Expect(e.Run()).To(Equal(int64(42)))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
		})

		It("should report errors on stderr", func() {
			load(insts.EncodeEBREAK())
			Expect(e.Run()).To(Equal(int64(-1)))
			Expect(stderrBuf.String()).To(ContainSubstring("breakpoint"))
		})

		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(emu.WithStderr(stderrBuf), emu.WithMaxInstructions(10))
			load(insts.EncodeJAL(0, 0))
			Expect(e.Run()).To(Equal(int64(-1)))
			Expect(e.InstructionCount()).To(Equal(uint64(10)))
		})

		It("should write to stdout through ecall", func() {
			e.Memory().LoadProgram(0x6000, []byte("hi\n"))
			words := []uint32{
				insts.EncodeADDI(emu.RegA0, 0, 1),
				insts.EncodeLUI(emu.RegA1, 0x6),
				insts.EncodeADDI(emu.RegA2, 0, 3),
				insts.EncodeADDI(emu.RegA7, 0, int32(emu.SyscallWrite)),
				insts.EncodeECALL(),
			}
			load(append(words, exitSequence(0)...)...)

			Expect(e.Run()).To(BeZero())
			Expect(stdoutBuf.String()).To(Equal("hi\n"))
		})
	})
})
