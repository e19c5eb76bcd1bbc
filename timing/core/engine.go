package core

import (
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/timing/bus"
	"github.com/sarchlab/rv32sim/timing/csr"
	"github.com/sarchlab/rv32sim/timing/lsu"
	"github.com/sarchlab/rv32sim/timing/muldiv"
	"github.com/sarchlab/rv32sim/timing/trigger"
)

// transition is the complete next-state record computed for one edge.
// Fields left at their zero value mean the signal is not driven.
type transition struct {
	state State

	pcWrite bool
	pc      uint32

	rdWrite bool
	rdValue uint32

	retire bool
	trap   bool

	record csr.Record

	decode  bool
	word    uint32
	rs1Data uint32
	rs2Data uint32

	ldWrite  bool
	ldOut    uint32
	csrWrite bool
	csrOut   uint32
	mdWrite  bool
	mdOut    uint32
	amoWrite bool
	amoOut   uint32
	phase    atomicPhase

	csrReq csr.PortRequest
	mulIn  muldiv.Input
	divIn  muldiv.Input

	cancel bool
	isLR   bool

	halt trigger.Hit

	fetchWait  bool
	memWait    bool
	mulDivWait bool
}

func (c *Core) inst() *insts.Instruction {
	return c.decode.Current()
}

// memoryWidth returns the funct3 width of the memory access of inst.
func memoryWidth(inst *insts.Instruction) uint8 {
	switch inst.Class {
	case insts.ClassLRSC, insts.ClassAMO:
		return insts.Funct3W
	}
	return inst.Funct3
}

func (c *Core) memoryTrigger() trigger.Hit {
	if c.triggers == nil {
		return trigger.Hit{}
	}
	inst := c.inst()
	return c.triggers.Access(c.alu.addOut, inst.WritesMemory(), c.exc.Priv())
}

// scFails reports whether the instruction is a store-conditional whose
// reservation no longer holds.
func (c *Core) scFails() bool {
	return c.inst().Op == insts.OpSC && !c.tracker.SCOK(c.alu.addOut)
}

// access returns the memory access driven in the current state.
func (c *Core) access() lsu.Access {
	inst := c.inst()

	switch c.state {
	case StateFetch:
		return lsu.Access{
			Addr:   c.regs.PC,
			Width:  insts.Funct3W,
			Cycle:  true,
			Strobe: true,
		}

	case StateMemory:
		if c.memoryTrigger().Breakpoint || c.scFails() {
			return lsu.Access{Addr: c.alu.addOut, Width: memoryWidth(inst)}
		}
		return lsu.Access{
			Addr:   c.alu.addOut,
			Width:  memoryWidth(inst),
			Data:   c.rs2Data,
			Write:  inst.WritesMemory(),
			Cycle:  true,
			Strobe: true,
			Lock:   inst.Class == insts.ClassLRSC,
		}

	case StateAtomic:
		a := lsu.Access{
			Addr:  c.alu.addOut,
			Width: insts.Funct3W,
			Cycle: true,
			Lock:  true,
		}
		switch c.phase {
		case atomicLoad:
			a.Strobe = true
		case atomicStore:
			a.Strobe = true
			a.Write = true
			a.Data = c.amoOut
		}
		return a
	}

	return lsu.Access{}
}

func exception(cause insts.Cause, data uint32) csr.Record {
	return csr.Record{Enable: true, Exception: true, Cause: cause, Data: data}
}

func (n *transition) trapWith(rec csr.Record) {
	n.state = StateTrap
	n.record = rec
}

// evaluate computes the transition of the current state. It must not
// modify any registered state.
func (c *Core) evaluate(access lsu.Access, rsp bus.Response) transition {
	switch c.state {
	case StateReset:
		return transition{state: StateFetch}
	case StateFetch:
		return c.evaluateFetch(access, rsp)
	case StateExecute:
		return c.evaluateExecute()
	case StateMemory:
		return c.evaluateMemory(access, rsp)
	case StateAtomic:
		return c.evaluateAtomic(access, rsp)
	case StateCSR:
		return c.evaluateCSR()
	case StateCommit:
		return c.evaluateCommit()
	case StateTrap:
		return c.evaluateTrap()
	}
	return transition{state: StateReset}
}

func (c *Core) evaluateFetch(access lsu.Access, rsp bus.Response) transition {
	n := transition{state: StateFetch}
	result := lsu.Decode(access, rsp)

	switch {
	case result.Misaligned:
		n.trapWith(exception(insts.CauseInstAddrMisaligned, c.regs.PC))
	case result.Error:
		n.trapWith(exception(insts.CauseInstAccessFault, c.regs.PC))
	case result.Ready:
		rs1, rs2 := insts.RegisterFields(result.LoadData)
		n.state = StateExecute
		n.decode = true
		n.word = result.LoadData
		n.rs1Data = c.regs.ReadReg(rs1)
		n.rs2Data = c.regs.ReadReg(rs2)
	default:
		n.fetchWait = true
	}
	return n
}

func (c *Core) evaluateExecute() transition {
	n := transition{state: StateExecute}
	inst := c.inst()
	priv := c.exc.Priv()

	if cause, ok := c.exc.PendingInterrupt(); ok {
		n.trapWith(csr.Record{Enable: true, Interrupt: true, Cause: cause})
		return n
	}

	var hit trigger.Hit
	if c.triggers != nil {
		hit = c.triggers.Execute(c.regs.PC, priv)
	}
	if hit.Breakpoint {
		n.trapWith(exception(insts.CauseBreakpoint, c.regs.PC))
		return n
	}

	switch inst.Class {
	case insts.ClassAdd, insts.ClassLogic, insts.ClassCompare, insts.ClassShift,
		insts.ClassBranch, insts.ClassJump:
		n.state = StateCommit
	case insts.ClassMul:
		c.evaluateMulDiv(&n, c.mul.Ready(), c.mul.Result(), &n.mulIn)
	case insts.ClassDiv:
		c.evaluateMulDiv(&n, c.div.Ready(), c.div.Result(), &n.divIn)
	case insts.ClassFence:
		n.state = StateFetch
		n.pcWrite = true
		n.pc = c.regs.PC + 4
		n.retire = true
	case insts.ClassLoad, insts.ClassStore, insts.ClassLRSC:
		n.state = StateMemory
	case insts.ClassAMO:
		n.state = StateAtomic
	case insts.ClassCSR:
		n.state = StateCSR
	case insts.ClassSystem:
		c.evaluateSystem(&n, inst, priv)
	default:
		n.trapWith(exception(insts.CauseIllegalInst, c.word))
	}

	if n.state != StateExecute && n.state != StateTrap {
		n.halt = hit
	}
	return n
}

func (c *Core) evaluateMulDiv(n *transition, ready bool, result uint32, in *muldiv.Input) {
	if ready {
		n.state = StateCommit
		n.mdWrite = true
		n.mdOut = result
		return
	}

	*in = muldiv.Input{
		Op:    c.inst().Op,
		A:     c.rs1Data,
		B:     c.rs2Data,
		Valid: true,
	}
	n.mulDivWait = true
}

func (c *Core) evaluateSystem(n *transition, inst *insts.Instruction, priv insts.PrivMode) {
	switch inst.Op {
	case insts.OpECALL:
		cause := insts.CauseECallFromM
		if priv == insts.PrivUser {
			cause = insts.CauseECallFromU
		}
		n.trapWith(exception(cause, 0))
	case insts.OpEBREAK:
		n.trapWith(exception(insts.CauseBreakpoint, c.regs.PC))
	case insts.OpMRET:
		n.trapWith(csr.Record{Enable: true, Mret: true})
	default:
		n.trapWith(exception(insts.CauseIllegalInst, c.word))
	}
}

func (c *Core) evaluateMemory(access lsu.Access, rsp bus.Response) transition {
	n := transition{state: StateMemory}
	inst := c.inst()
	store := inst.WritesMemory()
	addr := c.alu.addOut

	hit := c.memoryTrigger()
	if hit.Breakpoint {
		n.trapWith(exception(insts.CauseBreakpoint, c.regs.PC))
		return n
	}

	if emu.Misaligned(memoryWidth(inst), addr) {
		cause := insts.CauseLoadAddrMisaligned
		if store {
			cause = insts.CauseStoreAMOAddrMisaligned
		}
		n.trapWith(exception(cause, addr))
		return n
	}

	if c.scFails() {
		n.state = StateCommit
		n.ldWrite = true
		n.ldOut = 1
		n.cancel = true
		n.halt = hit
		return n
	}

	result := lsu.Decode(access, rsp)
	switch {
	case result.Error:
		cause := insts.CauseLoadAccessFault
		if store {
			cause = insts.CauseStoreAMOAccessFault
		}
		n.trapWith(exception(cause, addr))
	case result.Ready:
		n.state = StateCommit
		n.ldWrite = true
		n.ldOut = result.LoadData
		n.halt = hit
		switch inst.Op {
		case insts.OpSC:
			n.ldOut = 0
			n.cancel = true
		case insts.OpLR:
			n.isLR = true
		}
	default:
		n.memWait = true
	}
	return n
}

func (c *Core) evaluateAtomic(access lsu.Access, rsp bus.Response) transition {
	n := transition{state: StateAtomic, phase: c.phase}
	addr := c.alu.addOut

	if emu.Misaligned(insts.Funct3W, addr) {
		n.trapWith(exception(insts.CauseStoreAMOAddrMisaligned, addr))
		return n
	}

	switch c.phase {
	case atomicModify:
		n.phase = atomicStore
		n.amoWrite = true
		n.amoOut = emu.AMOResult(c.inst().Op, c.ldOut, c.rs2Data)
		return n
	}

	result := lsu.Decode(access, rsp)
	switch {
	case result.Error:
		n.trapWith(exception(insts.CauseStoreAMOAccessFault, addr))
	case result.Ready && c.phase == atomicLoad:
		n.phase = atomicModify
		n.ldWrite = true
		n.ldOut = result.LoadData
	case result.Ready:
		n.state = StateCommit
		n.phase = atomicLoad
		n.cancel = true
	default:
		n.memWait = true
	}
	return n
}

func (c *Core) evaluateCSR() transition {
	n := transition{state: StateCSR}
	inst := c.inst()
	port := c.csrs.Response()

	n.csrReq = csr.PortRequest{
		Addr:  inst.CSR,
		WData: csrWriteData(inst, port.RData, c.alu.csrSrc),
		We:    inst.CSRWrite,
		Valid: true,
	}

	if !port.Ready {
		return n
	}

	if port.Invalid {
		n.trapWith(exception(insts.CauseIllegalInst, c.word))
		return n
	}

	n.state = StateCommit
	n.csrWrite = true
	n.csrOut = port.RData
	return n
}

func (c *Core) writeBackValue(inst *insts.Instruction) uint32 {
	switch inst.Class {
	case insts.ClassAdd:
		return c.alu.addOut
	case insts.ClassLogic:
		return c.alu.logicOut
	case insts.ClassCompare:
		return c.alu.compareOut(inst)
	case insts.ClassShift:
		return c.alu.shiftOut
	case insts.ClassJump:
		return c.regs.PC + 4
	case insts.ClassLoad, insts.ClassLRSC, insts.ClassAMO:
		return c.ldOut
	case insts.ClassCSR:
		return c.csrOut
	case insts.ClassMul, insts.ClassDiv:
		return c.mdOut
	}
	return 0
}

func (c *Core) evaluateCommit() transition {
	n := transition{state: StateFetch}
	inst := c.inst()

	taken := inst.Class == insts.ClassJump ||
		(inst.Class == insts.ClassBranch && c.alu.branchTaken(inst))
	target := c.alu.addOut &^ 1

	if taken && emu.TargetMisaligned(target) {
		n.trapWith(exception(insts.CauseInstAddrMisaligned, target))
		return n
	}

	n.pcWrite = true
	n.pc = c.regs.PC + 4
	if taken {
		n.pc = target
		n.cancel = true
	}

	n.rdWrite = inst.Rd != 0 && inst.WritesRd()
	n.rdValue = c.writeBackValue(inst)
	n.retire = true
	return n
}

func (c *Core) evaluateTrap() transition {
	n := transition{
		state:   StateFetch,
		pcWrite: true,
		cancel:  true,
	}

	if c.record.Mret {
		n.pc = c.exc.MEPC()
		n.retire = true
		return n
	}

	n.pc = c.exc.TrapTarget(c.record)
	n.trap = c.record.IsTrap()
	return n
}

// commit applies a transition at the clock edge. Units that read CSR
// software writes tick before the CSR file clears the pending flags.
func (c *Core) commit(
	n transition,
	req bus.Request,
	rsp bus.Response,
	snoop bus.Snoop,
	lines csr.InterruptLines,
) {
	inst := c.inst()
	priv := c.exc.Priv()
	pc := c.regs.PC
	alu := computeALU(inst, c.rs1Data, c.rs2Data, pc)

	var trapInfo TrapInfo
	if n.trap {
		trapInfo = TrapInfo{
			HartID:    c.cfg.HartID,
			Cycle:     c.stats.Cycles,
			PC:        pc,
			Cause:     c.record.Cause,
			Interrupt: !c.record.Exception,
			Value:     c.record.Data,
			Target:    n.pc,
			Priv:      priv,
		}
	}

	c.csrs.Evaluate(n.csrReq, priv)
	c.exc.Tick(csr.ExceptionInput{
		Record: c.record,
		PC:     pc,
		Retire: n.retire,
		Lines:  lines,
	})
	if c.triggers != nil {
		c.triggers.Tick()
	}
	c.csrs.Tick()

	if c.mul != nil {
		c.mul.Tick(n.mulIn)
		c.div.Tick(n.divIn)

		// A trap out of EXECUTE abandons any operation in flight, so its
		// ready pulse can never reach a later instruction.
		if c.state == StateExecute && n.state == StateTrap {
			c.mul.Reset()
			c.div.Reset()
		}
	}

	c.tracker.Tick(lsu.TrackerInput{
		Cancel:   n.cancel,
		IsLR:     n.isLR,
		Internal: bus.SnoopOf(req, rsp),
		Snoop:    snoop,
	})

	var retired RetireInfo
	if n.retire {
		retired = RetireInfo{
			HartID:    c.cfg.HartID,
			Cycle:     c.stats.Cycles,
			PC:        pc,
			Word:      c.word,
			Op:        inst.Op,
			NextPC:    n.pc,
			RdWritten: n.rdWrite,
			Rd:        inst.Rd,
			RdValue:   n.rdValue,
		}
	}

	if n.decode {
		c.decode.Tick(true, n.word, priv)
		c.word = n.word
		c.rs1Data = n.rs1Data
		c.rs2Data = n.rs2Data
	}
	c.alu = alu

	if n.rdWrite {
		c.regs.WriteReg(inst.Rd, n.rdValue)
	}
	if n.pcWrite {
		c.regs.PC = n.pc
	}
	if n.ldWrite {
		c.ldOut = n.ldOut
	}
	if n.csrWrite {
		c.csrOut = n.csrOut
	}
	if n.mdWrite {
		c.mdOut = n.mdOut
	}
	if n.amoWrite {
		c.amoOut = n.amoOut
	}
	c.phase = n.phase
	c.record = n.record
	c.state = n.state

	c.updateStats(n, trapInfo.Interrupt)
	c.notify(n, pc, retired, trapInfo)
}

func (c *Core) updateStats(n transition, interrupt bool) {
	c.stats.Cycles++
	if n.retire {
		c.stats.Instructions++
	}
	if n.trap {
		if interrupt {
			c.stats.Interrupts++
		} else {
			c.stats.Exceptions++
		}
	}
	if n.halt.HaltRequest {
		c.stats.HaltRequests++
	}
	if n.fetchWait {
		c.stats.FetchWaitCycles++
	}
	if n.memWait {
		c.stats.MemWaitCycles++
	}
	if n.mulDivWait {
		c.stats.MulDivCycles++
	}
}
