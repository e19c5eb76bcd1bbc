package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/rv32sim/insts"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (via exit syscall).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set if an error occurred during execution. Architectural
	// exceptions are reported as *Trap.
	Err error
}

// Trap is an exception raised by the functional emulator. The emulator has
// no privileged architecture, so every trap stops execution.
type Trap struct {
	Cause insts.Cause
	PC    uint32
	Value uint32
}

// Error implements the error interface.
func (t *Trap) Error() string {
	return fmt.Sprintf("%s at PC=0x%08X (tval=0x%08X)",
		t.Cause.Describe(false), t.PC, t.Value)
}

// Emulator executes RV32IMA instructions functionally, one instruction per
// step. It is the architectural reference for the cycle-level core.
type Emulator struct {
	regFile        *RegFile
	memory         *Memory
	decoder        *insts.Decoder
	syscallHandler SyscallHandler
	lsu            *LoadStoreUnit

	// CSRs without side effects, as read and written by Zicsr instructions.
	csrs map[uint16]uint32

	// LR reservation, word aligned.
	reservation      uint32
	reservationValid bool

	// I/O
	stdout io.Writer
	stderr io.Writer

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
	customSyscalls   bool
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.syscallHandler = handler
		e.customSyscalls = true
	}
}

// WithStackPointer sets the initial stack pointer value.
func WithStackPointer(sp uint32) EmulatorOption {
	return func(e *Emulator) {
		e.regFile.WriteReg(RegSP, sp)
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new RV32IMA emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	regFile := &RegFile{}
	memory := NewMemory()

	e := &Emulator{
		regFile: regFile,
		memory:  memory,
		decoder: insts.NewDecoder(insts.WithRV32M(), insts.WithRV32A()),
		csrs:    make(map[uint16]uint32),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.lsu = NewLoadStoreUnit(memory)
	if e.syscallHandler == nil {
		e.syscallHandler = NewDefaultSyscallHandler(regFile, memory, e.stdout, e.stderr)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram loads a program into memory and sets the entry point.
// The program can be either a []byte or a *Memory.
func (e *Emulator) LoadProgram(entry uint32, program interface{}) {
	switch p := program.(type) {
	case []byte:
		e.memory.LoadProgram(entry, p)
	case *Memory:
		e.memory = p
		e.lsu = NewLoadStoreUnit(e.memory)
		if !e.customSyscalls {
			e.syscallHandler = NewDefaultSyscallHandler(e.regFile, e.memory, e.stdout, e.stderr)
		}
	}
	e.regFile.PC = entry
}

// Reset resets the emulator to its initial state.
func (e *Emulator) Reset() {
	e.regFile = &RegFile{}
	e.memory = NewMemory()
	e.lsu = NewLoadStoreUnit(e.memory)
	e.csrs = make(map[uint16]uint32)
	e.reservationValid = false
	e.instructionCount = 0
	e.syscallHandler = NewDefaultSyscallHandler(e.regFile, e.memory, e.stdout, e.stderr)
	e.customSyscalls = false
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{
			Err: fmt.Errorf("max instructions reached"),
		}
	}

	pc := e.regFile.PC
	if pc&0b11 != 0 {
		return StepResult{Err: &Trap{Cause: insts.CauseInstAddrMisaligned, PC: pc, Value: pc}}
	}

	word := e.memory.Read32(pc)
	inst := e.decoder.Decode(word, insts.PrivMachine)

	result := e.execute(inst)
	if result.Err == nil {
		e.instructionCount++
	}

	return result
}

// Run executes instructions until the program exits or an error occurs.
// Returns the exit code (-1 if error).
func (e *Emulator) Run() int64 {
	for {
		result := e.Step()
		if result.Exited {
			return result.ExitCode
		}
		if result.Err != nil {
			_, _ = fmt.Fprintf(e.stderr, "Emulation error: %v\n", result.Err)
			return -1
		}
	}
}

func (e *Emulator) trap(cause insts.Cause, value uint32) StepResult {
	return StepResult{Err: &Trap{Cause: cause, PC: e.regFile.PC, Value: value}}
}

// execute dispatches and executes a decoded instruction.
func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	rf := e.regFile
	pc := rf.PC
	rs1 := rf.ReadReg(inst.Rs1)
	rs2 := rf.ReadReg(inst.Rs2)

	switch inst.Class {
	case insts.ClassNone:
		return e.trap(insts.CauseIllegalInst, inst.Word)

	case insts.ClassAdd, insts.ClassLogic, insts.ClassCompare, insts.ClassShift:
		rf.WriteReg(inst.Rd, Compute(inst, rs1, rs2, pc))

	case insts.ClassJump, insts.ClassBranch:
		return e.executeControl(inst, rs1, rs2)

	case insts.ClassLoad, insts.ClassStore:
		return e.executeLoadStore(inst, rs1, rs2)

	case insts.ClassMul, insts.ClassDiv:
		rf.WriteReg(inst.Rd, MulDiv(inst.Op, rs1, rs2))

	case insts.ClassLRSC:
		return e.executeLRSC(inst, rs1, rs2)

	case insts.ClassAMO:
		return e.executeAMO(inst, rs1, rs2)

	case insts.ClassCSR:
		e.executeCSR(inst, rs1)

	case insts.ClassFence:
		// No caches or outstanding requests to order.

	case insts.ClassSystem:
		return e.executeSystem(inst)
	}

	rf.PC = pc + 4
	return StepResult{}
}

func (e *Emulator) executeControl(inst *insts.Instruction, rs1, rs2 uint32) StepResult {
	pc := e.regFile.PC
	if inst.Class == insts.ClassBranch && !BranchTaken(inst.Op, rs1, rs2) {
		e.regFile.PC = pc + 4
		return StepResult{}
	}

	target := JumpTarget(inst, pc, rs1)
	if TargetMisaligned(target) {
		return e.trap(insts.CauseInstAddrMisaligned, target&^1)
	}

	e.reservationValid = false
	if inst.Class == insts.ClassJump {
		e.regFile.WriteReg(inst.Rd, pc+4)
	}
	e.regFile.PC = target
	return StepResult{}
}

func (e *Emulator) executeLoadStore(inst *insts.Instruction, rs1, rs2 uint32) StepResult {
	addr := rs1 + inst.Imm
	width := inst.Funct3

	if Misaligned(width, addr) {
		if inst.Class == insts.ClassLoad {
			return e.trap(insts.CauseLoadAddrMisaligned, addr)
		}
		return e.trap(insts.CauseStoreAMOAddrMisaligned, addr)
	}

	if inst.Class == insts.ClassLoad {
		e.regFile.WriteReg(inst.Rd, e.lsu.Load(width, addr))
	} else {
		e.lsu.Store(width, addr, rs2)
		e.snoopStore(addr)
	}

	e.regFile.PC += 4
	return StepResult{}
}

func (e *Emulator) executeLRSC(inst *insts.Instruction, rs1, rs2 uint32) StepResult {
	if rs1&0b11 != 0 {
		if inst.Op == insts.OpLR {
			return e.trap(insts.CauseLoadAddrMisaligned, rs1)
		}
		return e.trap(insts.CauseStoreAMOAddrMisaligned, rs1)
	}

	if inst.Op == insts.OpLR {
		e.regFile.WriteReg(inst.Rd, e.memory.Read32(rs1))
		e.reservation = rs1
		e.reservationValid = true
	} else {
		if e.reservationValid && e.reservation == rs1 {
			e.memory.Write32(rs1, rs2)
			e.regFile.WriteReg(inst.Rd, 0)
		} else {
			e.regFile.WriteReg(inst.Rd, 1)
		}
		e.reservationValid = false
	}

	e.regFile.PC += 4
	return StepResult{}
}

func (e *Emulator) executeAMO(inst *insts.Instruction, rs1, rs2 uint32) StepResult {
	if rs1&0b11 != 0 {
		return e.trap(insts.CauseStoreAMOAddrMisaligned, rs1)
	}

	loaded := e.memory.Read32(rs1)
	e.memory.Write32(rs1, AMOResult(inst.Op, loaded, rs2))
	e.snoopStore(rs1)
	e.regFile.WriteReg(inst.Rd, loaded)

	e.regFile.PC += 4
	return StepResult{}
}

func (e *Emulator) executeCSR(inst *insts.Instruction, rs1 uint32) {
	src := rs1
	if inst.CSRImmediate() {
		src = uint32(inst.Rs1)
	}

	old := e.readCSR(inst.CSR)
	var value uint32
	switch inst.Op {
	case insts.OpCSRRW, insts.OpCSRRWI:
		value = src
	case insts.OpCSRRS, insts.OpCSRRSI:
		value = old | src
	case insts.OpCSRRC, insts.OpCSRRCI:
		value = old &^ src
	}

	if inst.CSRWrite {
		e.csrs[inst.CSR] = value
	}
	e.regFile.WriteReg(inst.Rd, old)
}

func (e *Emulator) readCSR(addr uint16) uint32 {
	switch addr {
	case insts.CSRMCycle, insts.CSRMInstret, insts.CSRCycle, insts.CSRInstret:
		return uint32(e.instructionCount)
	case insts.CSRMCycleH, insts.CSRMInstretH, insts.CSRCycleH, insts.CSRInstretH:
		return uint32(e.instructionCount >> 32)
	}
	return e.csrs[addr]
}

func (e *Emulator) executeSystem(inst *insts.Instruction) StepResult {
	switch inst.Op {
	case insts.OpECALL:
		result := e.syscallHandler.Handle()
		if !result.Exited {
			e.regFile.PC += 4
		}
		return StepResult{Exited: result.Exited, ExitCode: result.ExitCode}
	case insts.OpEBREAK:
		return e.trap(insts.CauseBreakpoint, e.regFile.PC)
	case insts.OpMRET:
		e.regFile.PC = e.csrs[insts.CSRMEPC] &^ 0b11
		return StepResult{}
	}
	return e.trap(insts.CauseIllegalInst, inst.Word)
}

// snoopStore drops the reservation when a store hits the reserved word.
func (e *Emulator) snoopStore(addr uint32) {
	if e.reservationValid && e.reservation == addr&^0b11 {
		e.reservationValid = false
	}
}
