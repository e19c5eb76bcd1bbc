// Package benchmarks provides the microbenchmark harness used to measure
// the cycle behavior of the core on small RISC-V programs.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/system"
	"github.com/sarchlab/rv32sim/timing/cache"
)

// Memory layout shared by every benchmark program. gp holds DataBase, and
// programs report through the result and tohost words.
const (
	ProgramBase  = config.DefaultResetAddress
	DataBase     = config.DefaultResetAddress + 0x8000
	ResultOffset = 0x7F8
	ToHostOffset = 0x7FC
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count of the run
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// FetchWaitCycles is the number of cycles fetch waited for the bus
	FetchWaitCycles uint64 `json:"fetch_wait_cycles"`

	// MemWaitCycles is the number of cycles loads, stores and atomics
	// waited for the bus
	MemWaitCycles uint64 `json:"mem_wait_cycles"`

	// MulDivCycles is the number of cycles spent waiting for the
	// multiplier or the divider
	MulDivCycles uint64 `json:"muldiv_cycles"`

	// Traps is the number of exceptions and interrupts taken
	Traps uint64 `json:"traps"`

	// CacheHits/Misses (if the memory is cached)
	CacheHits   uint64 `json:"cache_hits,omitempty"`
	CacheMisses uint64 `json:"cache_misses,omitempty"`

	// ExitCode is the value the program left in the result word
	ExitCode uint32 `json:"exit_code"`

	// Passed is set when the program wrote the pass code to tohost
	Passed bool `json:"passed"`

	// Error is set when the run did not finish
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the memory before the run (e.g., input arrays)
	Setup func(memory *emu.Memory)

	// Program is the RV32 machine code, loaded at ProgramBase
	Program []uint32

	// ExpectedExit is the expected result word (for validation)
	ExpectedExit uint32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// System is the platform every benchmark runs on. The first region
	// must hold ProgramBase and DataBase.
	System *config.SystemConfig

	// MemoryLatency is the number of wait states of the memory
	MemoryLatency uint64

	// EnableCache models the memory latency with a cache
	EnableCache bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives the simulator log
	Logger logr.Logger

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	sys := config.DefaultConfig()
	sys.MaxCycles = 1_000_000

	return HarnessConfig{
		System:        sys,
		MemoryLatency: 1,
		EnableCache:   false,
		Output:        os.Stdout,
		Logger:        logr.Discard(),
		Verbose:       false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.System == nil {
		config.System = DefaultConfig().System
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "%s: %d cycles, %d instructions\n",
				result.Name, result.SimulatedCycles, result.InstructionsRetired)
		}
		results = append(results, result)
	}

	return results
}

func (h *Harness) systemConfig() *config.SystemConfig {
	cfg := h.config.System.Clone()
	if len(cfg.Regions) == 0 {
		return cfg
	}

	cfg.Regions[0].Latency = h.config.MemoryLatency
	if h.config.EnableCache {
		cacheCfg := cache.DefaultConfig()
		cfg.Regions[0].Cache = &cacheCfg
	}
	return cfg
}

// runBenchmark executes a single benchmark on a fresh system.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	sys, err := system.New(h.systemConfig(),
		system.WithLogger(h.config.Logger.WithValues("benchmark", bench.Name)))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	sys.Memory().LoadProgram(ProgramBase, insts.Assemble(bench.Program...))
	if bench.Setup != nil {
		bench.Setup(sys.Memory())
	}
	sys.SetToHost(DataBase + ToHostOffset)

	// Run simulation and measure time
	start := time.Now()
	run, err := sys.Run()
	result.WallTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
	}

	// Collect statistics
	stats := sys.Core(0).Stats()
	result.SimulatedCycles = run.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.FetchWaitCycles = stats.FetchWaitCycles
	result.MemWaitCycles = stats.MemWaitCycles
	result.MulDivCycles = stats.MulDivCycles
	result.Traps = stats.Traps()
	result.ExitCode = sys.ReadWord(DataBase + ResultOffset)
	result.Passed = run.Passed()

	// Collect cache stats if enabled
	if ram, ok := sys.RAM(sys.Config().Regions[0].Name); ok && ram.Cache() != nil {
		cacheStats := ram.Cache().Stats()
		result.CacheHits = cacheStats.Hits
		result.CacheMisses = cacheStats.Misses
	}

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== rv32sim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Exit Code: %d (passed: %t)\n", r.ExitCode, r.Passed)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Fetch Wait Cycles:    %d\n", r.FetchWaitCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Memory Wait Cycles:   %d\n", r.MemWaitCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Mul/Div Cycles:       %d\n", r.MulDivCycles)
		if r.Traps > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Traps:                %d\n", r.Traps)
		}

		if r.CacheHits > 0 || r.CacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.CacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.CacheMisses)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,fetch_wait,mem_wait,muldiv,traps,cache_hits,cache_misses,exit_code,passed")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%t\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.FetchWaitCycles,
			r.MemWaitCycles,
			r.MulDivCycles,
			r.Traps,
			r.CacheHits,
			r.CacheMisses,
			r.ExitCode,
			r.Passed,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Variant is the core variant the benchmarks ran on
	Variant string `json:"variant"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	MemoryLatency uint64 `json:"memory_latency"`
	CacheEnabled  bool   `json:"cache_enabled"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of benchmarks that did not pass
	Failed int `json:"failed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Report builds the JSON report of a set of results.
func (h *Harness) Report(results []BenchmarkResult) BenchmarkReport {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	failed := 0
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
		if !r.Passed {
			failed++
		}
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	return BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Variant:   h.config.System.Variant,
			Config: BenchmarkConfig{
				MemoryLatency: h.config.MemoryLatency,
				CacheEnabled:  h.config.EnableCache,
			},
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			Failed:            failed,
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(h.Report(results))
}
