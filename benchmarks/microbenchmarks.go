package benchmarks

import (
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
)

// Registers used by the benchmark programs.
const (
	regRA uint8 = 1
	regGP uint8 = 3
	regT0 uint8 = 5
	regT1 uint8 = 6
	regT2 uint8 = 7
	regA0 uint8 = 10
	regA1 uint8 = 11
	regA2 uint8 = 12
	regA3 uint8 = 13
	regA4 uint8 = 14
	regT3 uint8 = 28
	regT4 uint8 = 29
	regT6 uint8 = 31
)

// epilogueLen is the number of instructions appended by program after the
// body.
const epilogueLen = 4

// program wraps body between the gp setup and the exit sequence, which
// stores a0 to the result word, writes the pass code to tohost and spins.
func program(body ...uint32) []uint32 {
	words := []uint32{insts.EncodeLUI(regGP, DataBase>>12)}
	words = append(words, body...)
	return append(words,
		insts.EncodeSW(regA0, regGP, ResultOffset),
		insts.EncodeADDI(regT6, 0, 1),
		insts.EncodeSW(regT6, regGP, ToHostOffset),
		insts.EncodeJAL(0, 0),
	)
}

func repeat(n int, words ...uint32) []uint32 {
	out := make([]uint32, 0, n*len(words))
	for i := 0; i < n; i++ {
		out = append(out, words...)
	}
	return out
}

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each
// benchmark targets one timing path of the core.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		mixedOperations(),
		matrixMultiply2x2(),
		loopCounted(),
		divideChain(),
		atomicCounter(),
		lrscIncrement(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick
// validation: loop, matrix multiply, branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopCounted(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

// 1. Arithmetic Sequential - ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDI operations - measures ALU instruction cost",
		Program: program(repeat(4,
			insts.EncodeADDI(regA0, regA0, 1),
			insts.EncodeADDI(regA1, regA1, 1),
			insts.EncodeADDI(regA2, regA2, 1),
			insts.EncodeADDI(regA3, regA3, 1),
			insts.EncodeADDI(regA4, regA4, 1),
		)...),
		ExpectedExit: 4,
	}
}

// 2. Dependency Chain - every instruction reads the previous result
func dependencyChain() Benchmark {
	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs (a0 = a0 + 1) - measures back-to-back latency",
		Program:      program(repeat(20, insts.EncodeADDI(regA0, regA0, 1))...),
		ExpectedExit: 20,
	}
}

// 3. Memory Sequential - store/load pairs through the bus
func memorySequential() Benchmark {
	body := []uint32{insts.EncodeADDI(regA0, 0, 42)}
	for i := int32(0); i < 10; i++ {
		body = append(body,
			insts.EncodeSW(regA0, regGP, 4*i),
			insts.EncodeLW(regA0, regGP, 4*i),
		)
	}

	return Benchmark{
		Name:         "memory_sequential",
		Description:  "10 store/load pairs to sequential addresses - measures memory latency",
		Program:      program(body...),
		ExpectedExit: 42,
	}
}

// 4. Function Calls - JAL/JALR overhead
func functionCalls() Benchmark {
	// add_one follows the exit sequence, at word 1+5+epilogueLen.
	const addOne = 1 + 5 + epilogueLen

	var calls []uint32
	for i := 1; i <= 5; i++ {
		calls = append(calls, insts.EncodeJAL(regRA, int32(4*(addOne-i))))
	}

	return Benchmark{
		Name:        "function_calls",
		Description: "5 function calls (JAL + JALR pairs) - measures call overhead",
		Program: append(program(calls...),
			insts.EncodeADDI(regA0, regA0, 1),
			insts.EncodeJALR(0, regRA, 0),
		),
		ExpectedExit: 5,
	}
}

// 5. Branch Taken - unconditional forward jumps
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "5 forward jumps over one instruction - measures jump overhead",
		Program: program(repeat(5,
			insts.EncodeJAL(0, 8),
			insts.EncodeADDI(regA1, regA1, 99), // skipped
			insts.EncodeADDI(regA0, regA0, 1),
		)...),
		ExpectedExit: 5,
	}
}

// 6. Mixed Operations - ALU, memory and calls
func mixedOperations() Benchmark {
	// add_five follows the exit sequence.
	const addFive = 1 + 14 + epilogueLen

	iteration := func(offset int32) []uint32 {
		return []uint32{
			insts.EncodeADDI(regA2, regA0, 10),
			insts.EncodeSW(regA2, regGP, offset),
			insts.EncodeLW(regA3, regGP, offset),
			insts.EncodeADD(regA0, regA0, regA3),
		}
	}

	var body []uint32
	body = append(body, iteration(0)...)
	body = append(body, insts.EncodeJAL(regRA, int32(4*(addFive-(len(body)+1)))))
	body = append(body, iteration(4)...)
	body = append(body, insts.EncodeJAL(regRA, int32(4*(addFive-(len(body)+1)))))
	body = append(body, iteration(8)...)

	return Benchmark{
		Name:        "mixed_operations",
		Description: "Mix of ADD, SW/LW, and JAL - realistic workload characteristics",
		Program: append(program(body...),
			insts.EncodeADDI(regA0, regA0, 5),
			insts.EncodeJALR(0, regRA, 0),
		),
		// iter1: a0=0, a2=10, a3=10, a0=10, call +5 -> a0=15
		// iter2: a0=15, a2=25, a3=25, a0=40, call +5 -> a0=45
		// iter3: a0=45, a2=55, a3=55, a0=100
		ExpectedExit: 100,
	}
}

// 7. Matrix Multiply - 2x2 product with the multiplier
func matrixMultiply2x2() Benchmark {
	// A at gp+0, B at gp+16, C at gp+32, all row-major.
	a := []uint8{16, 17, 18, 19}
	b := []uint8{20, 21, 22, 23}
	const tmp0, tmp1 uint8 = 24, 25
	c := []uint8{26, 27, 28, 29}

	var body []uint32
	for i := range a {
		body = append(body, insts.EncodeLW(a[i], regGP, int32(4*i)))
		body = append(body, insts.EncodeLW(b[i], regGP, int32(16+4*i)))
	}
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			dst := c[2*row+col]
			body = append(body,
				insts.EncodeMulDiv(insts.Funct3MUL, tmp0, a[2*row], b[col]),
				insts.EncodeMulDiv(insts.Funct3MUL, tmp1, a[2*row+1], b[2+col]),
				insts.EncodeADD(dst, tmp0, tmp1),
				insts.EncodeSW(dst, regGP, int32(32+4*(2*row+col))),
			)
		}
	}
	body = append(body,
		insts.EncodeADD(regA0, c[0], c[1]),
		insts.EncodeADD(regA0, regA0, c[2]),
		insts.EncodeADD(regA0, regA0, c[3]),
	)

	return Benchmark{
		Name:        "matrix_multiply_2x2",
		Description: "2x2 matrix product with MUL - tests the multiplier and memory",
		Setup: func(memory *emu.Memory) {
			for i, v := range []uint32{1, 2, 3, 4, 5, 6, 7, 8} {
				memory.Write32(DataBase+uint32(4*i), v)
			}
		},
		Program: program(body...),
		// C = [[19, 22], [43, 50]]
		ExpectedExit: 134,
	}
}

// 8. Counted Loop - for i := 0; i < 10; i++ { sum += i }
func loopCounted() Benchmark {
	return Benchmark{
		Name:        "loop_counted",
		Description: "10-iteration counted loop with BNE - tests taken branches",
		Program: program(
			insts.EncodeADDI(regT1, 0, 10),
			insts.EncodeADD(regA0, regA0, regT0),
			insts.EncodeADDI(regT0, regT0, 1),
			insts.EncodeBNE(regT0, regT1, -8),
		),
		ExpectedExit: 45,
	}
}

// 9. Divide Chain - dependent unsigned divisions
func divideChain() Benchmark {
	return Benchmark{
		Name:        "divide_chain",
		Description: "3 dependent DIVU by 10 - measures divider latency",
		Program: program(
			insts.EncodeLUI(regA0, 244),
			insts.EncodeADDI(regA0, regA0, 576), // 1000000
			insts.EncodeADDI(regT1, 0, 10),
			insts.EncodeMulDiv(insts.Funct3DIVU, regA0, regA0, regT1),
			insts.EncodeMulDiv(insts.Funct3DIVU, regA0, regA0, regT1),
			insts.EncodeMulDiv(insts.Funct3DIVU, regA0, regA0, regT1),
		),
		ExpectedExit: 1000,
	}
}

// 10. Atomic Counter - AMOADD in a loop
func atomicCounter() Benchmark {
	return Benchmark{
		Name:        "atomic_counter",
		Description: "10 AMOADD.W to one word - measures the atomic read-modify-write",
		Program: program(
			insts.EncodeADDI(regT0, 0, 10),
			insts.EncodeADDI(regT2, 0, 3),
			insts.EncodeAMO(insts.Funct5AMOADD, 0, regGP, regT2),
			insts.EncodeADDI(regT0, regT0, -1),
			insts.EncodeBNE(regT0, 0, -8),
			insts.EncodeLW(regA0, regGP, 0),
		),
		ExpectedExit: 30,
	}
}

// 11. LR/SC Increment - reservation-based read-modify-write
func lrscIncrement() Benchmark {
	return Benchmark{
		Name:        "lrsc_increment",
		Description: "5 LR/SC increments with retry - measures the reservation path",
		Program: program(
			insts.EncodeADDI(regT0, 0, 5),
			insts.EncodeLR(regT3, regGP),
			insts.EncodeADDI(regT3, regT3, 1),
			insts.EncodeSC(regT4, regGP, regT3),
			insts.EncodeBNE(regT4, 0, -12),
			insts.EncodeADDI(regT0, regT0, -1),
			insts.EncodeBNE(regT0, 0, -20),
			insts.EncodeLW(regA0, regGP, 0),
		),
		ExpectedExit: 5,
	}
}
