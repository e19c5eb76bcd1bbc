package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/loader"
	"github.com/sarchlab/rv32sim/system"
	"github.com/sarchlab/rv32sim/trace"
)

type runOptions struct {
	*globalOptions

	maxCycles  uint64
	harts      int
	traceDB    string
	traceLog   string
	commitLog  string
	signature  string
	functional bool
	cpuProfile string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "run <program.elf>",
		Short: "Run an ELF program until it writes tohost.",
		Long: `Run loads an RV32 ELF program and clocks the system until the ` +
			`program writes tohost. The command exits with 0 when tohost is 1 ` +
			`and with the tohost value otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}

	flags := cmd.Flags()
	flags.Uint64Var(&opts.maxCycles, "max-cycles", envUint(envMaxCycles, 0),
		"stop after this many cycles (0 keeps the configured limit)")
	flags.IntVar(&opts.harts, "harts", 0,
		"number of cores on the bus (0 keeps the configured count)")
	flags.StringVar(&opts.traceDB, "trace-db", envString(envTraceDB, ""),
		"write retirements and traps to this SQLite database")
	flags.StringVar(&opts.traceLog, "trace-log", "",
		"log every retirement and trap to this file")
	flags.StringVar(&opts.commitLog, "commit-log", "",
		"write a commit log line per retired instruction to this file")
	flags.StringVar(&opts.signature, "signature", "",
		"dump the begin_signature..end_signature range to this file")
	flags.BoolVar(&opts.functional, "functional", false,
		"run on the functional emulator instead of the cycle-level core")
	flags.StringVar(&opts.cpuProfile, "cpuprofile", "",
		"write a CPU profile of the simulator to this file")

	return cmd
}

func (o *runOptions) run(stdout, stderr io.Writer, path string) error {
	if o.cpuProfile != "" {
		stop, err := startProfile(o.cpuProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	prog, err := loader.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}

	cfg, err := o.systemConfig()
	if err != nil {
		return err
	}
	if o.maxCycles > 0 {
		cfg.MaxCycles = o.maxCycles
	}
	if o.harts > 0 {
		cfg.NumCores = o.harts
	}

	logger := o.logger(stderr)
	logger.Info("program loaded",
		"path", path,
		"entry", fmt.Sprintf("0x%08X", prog.EntryPoint),
		"segments", len(prog.Segments))

	if o.functional {
		return runFunctional(stdout, prog, cfg)
	}
	return o.runTiming(stdout, stderr, path, prog, cfg)
}

func (o *runOptions) runTiming(
	stdout, stderr io.Writer,
	path string,
	prog *loader.Program,
	cfg *config.SystemConfig,
) error {
	sysOpts := []system.Option{system.WithLogger(o.logger(stderr))}

	if o.traceDB != "" {
		tracer, err := trace.NewSQLiteTracer(o.traceDB)
		if err != nil {
			return err
		}
		defer func() { _ = tracer.Close() }()
		sysOpts = append(sysOpts, system.WithHook(tracer))
	}

	if o.traceLog != "" {
		f, err := os.Create(o.traceLog)
		if err != nil {
			return fmt.Errorf("failed to create trace log: %w", err)
		}
		defer func() { _ = f.Close() }()
		sysOpts = append(sysOpts, system.WithHook(trace.NewLogHook(newLogger(f, 0))))
	}

	var commits *trace.CommitWriter
	if o.commitLog != "" {
		f, err := os.Create(o.commitLog)
		if err != nil {
			return fmt.Errorf("failed to create commit log: %w", err)
		}
		defer func() { _ = f.Close() }()
		commits = trace.NewCommitWriter(f)
		sysOpts = append(sysOpts, system.WithHook(commits))
	}

	sys, err := system.New(cfg, sysOpts...)
	if err != nil {
		return err
	}
	sys.LoadProgram(prog)

	result, runErr := sys.Run()
	printResult(stdout, path, result)

	if commits != nil && commits.Err() != nil {
		return fmt.Errorf("failed to write commit log: %w", commits.Err())
	}
	if o.signature != "" {
		if err := writeSignature(sys, o.signature); err != nil {
			return err
		}
	}

	if runErr != nil {
		if errors.Is(runErr, system.ErrMaxCycles) {
			_, _ = fmt.Fprintf(stdout, "Timeout: %v\n", runErr)
		}
		return runErr
	}
	if !result.Passed() {
		return &exitError{code: int(result.ToHost)}
	}
	return nil
}

func printResult(w io.Writer, path string, result system.Result) {
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Program: %s\n", path)
	if result.Finished {
		_, _ = fmt.Fprintf(w, "tohost: %d (passed: %t)\n", result.ToHost, result.Passed())
	}
	_, _ = fmt.Fprintf(w, "Total Cycles: %d\n", result.Cycles)
	_, _ = fmt.Fprintf(w, "Total Instructions: %d\n", result.Instructions())

	for i, h := range result.Harts {
		_, _ = fmt.Fprintf(w, "\n")
		_, _ = fmt.Fprintf(w, "Hart %d:\n", i)
		_, _ = fmt.Fprintf(w, "  Instructions: %d\n", h.Instructions)
		_, _ = fmt.Fprintf(w, "  CPI:          %.2f\n", h.CPI())
		_, _ = fmt.Fprintf(w, "  Exceptions:   %d\n", h.Exceptions)
		_, _ = fmt.Fprintf(w, "  Interrupts:   %d\n", h.Interrupts)
		if h.HaltRequests > 0 {
			_, _ = fmt.Fprintf(w, "  Halt requests: %d\n", h.HaltRequests)
		}

		total := h.Cycles
		if total == 0 {
			total = 1
		}
		_, _ = fmt.Fprintf(w, "  Breakdown:\n")
		_, _ = fmt.Fprintf(w, "    Fetch wait:  %6d cycles (%5.1f%%)\n",
			h.FetchWaitCycles, 100.0*float64(h.FetchWaitCycles)/float64(total))
		_, _ = fmt.Fprintf(w, "    Memory wait: %6d cycles (%5.1f%%)\n",
			h.MemWaitCycles, 100.0*float64(h.MemWaitCycles)/float64(total))
		_, _ = fmt.Fprintf(w, "    Mul/Div:     %6d cycles (%5.1f%%)\n",
			h.MulDivCycles, 100.0*float64(h.MulDivCycles)/float64(total))
	}
}

func writeSignature(sys *system.System, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create signature file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return sys.WriteSignature(f)
}

// runFunctional runs the program on the functional emulator. The run ends
// on an exit ecall, on a tohost write or on a trap, which the emulator does
// not handle.
func runFunctional(w io.Writer, prog *loader.Program, cfg *config.SystemConfig) error {
	memory := emu.NewMemory()
	prog.LoadIntoMemory(memory)

	emulator := emu.NewEmulator(
		emu.WithStdout(w),
		emu.WithMaxInstructions(cfg.MaxCycles),
	)
	emulator.LoadProgram(prog.EntryPoint, memory)

	tohost, hasToHost := prog.Symbol(cfg.ToHostSymbol)

	for {
		result := emulator.Step()
		if result.Err != nil {
			return fmt.Errorf("emulation stopped after %d instructions: %w",
				emulator.InstructionCount(), result.Err)
		}

		if result.Exited {
			_, _ = fmt.Fprintf(w, "Exit code: %d\n", result.ExitCode)
			_, _ = fmt.Fprintf(w, "Instructions executed: %d\n", emulator.InstructionCount())
			if result.ExitCode != 0 {
				return &exitError{code: int(result.ExitCode)}
			}
			return nil
		}

		if !hasToHost {
			continue
		}
		if value := memory.Read32(tohost); value != 0 {
			_, _ = fmt.Fprintf(w, "tohost: %d (passed: %t)\n", value, value == system.ToHostPass)
			_, _ = fmt.Fprintf(w, "Instructions executed: %d\n", emulator.InstructionCount())
			if value != system.ToHostPass {
				return &exitError{code: int(value)}
			}
			return nil
		}
	}
}

func startProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}
