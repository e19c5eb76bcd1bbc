package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/loader"
	"github.com/sarchlab/rv32sim/loader/elftest"
	"github.com/sarchlab/rv32sim/system"
	"github.com/sarchlab/rv32sim/trace"
)

const (
	codeAddr   = config.DefaultResetAddress
	tohostAddr = config.DefaultResetAddress + 0x1000
	sigAddr    = tohostAddr + 4
)

// exitProgram writes code to tohost and spins.
func exitProgram(code int32) []byte {
	return insts.Assemble(
		insts.EncodeLUI(6, tohostAddr>>12),
		insts.EncodeADDI(12, 0, code),
		insts.EncodeSW(12, 6, 0),
		insts.EncodeJAL(0, 0),
	)
}

func writeProgram(path string, code []byte) {
	Expect(elftest.Write(path, elftest.Image{
		Machine: elftest.MachineRISCV,
		Entry:   codeAddr,
		Segments: []elftest.Segment{
			{Addr: codeAddr, Data: code, Flags: elftest.FlagsRX},
			{
				Addr:    tohostAddr,
				Data:    []byte{0, 0, 0, 0, 0xfe, 0xca, 0, 0, 0xef, 0xbe, 0, 0},
				MemSize: 16,
				Flags:   elftest.FlagsRW,
			},
		},
		Symbols: map[string]uint32{
			loader.SymbolToHost:         tohostAddr,
			loader.SymbolBeginSignature: sigAddr,
			loader.SymbolEndSignature:   sigAddr + 8,
		},
	})).To(Succeed())
}

func execute(args ...string) (string, string, error) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := newRootCmd()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

var _ = Describe("rvsim", func() {
	var (
		dir     string
		elfPath string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "rvsim-cli")
		Expect(err).NotTo(HaveOccurred())
		elfPath = filepath.Join(dir, "test.elf")
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	Describe("run", func() {
		It("should succeed when the program passes", func() {
			writeProgram(elfPath, exitProgram(1))

			stdout, _, err := execute("run", elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring("tohost: 1 (passed: true)"))
			Expect(stdout).To(ContainSubstring("Hart 0:"))
		})

		It("should exit with the failure code", func() {
			writeProgram(elfPath, exitProgram(7))

			stdout, _, err := execute("run", elfPath)
			var exit *exitError
			Expect(err).To(BeAssignableToTypeOf(exit))
			Expect(err.(*exitError).code).To(Equal(7))
			Expect(stdout).To(ContainSubstring("passed: false"))
		})

		It("should stop at the cycle limit", func() {
			writeProgram(elfPath, insts.Assemble(insts.EncodeJAL(0, 0)))

			stdout, _, err := execute("run", "--max-cycles", "50", elfPath)
			Expect(err).To(MatchError(system.ErrMaxCycles))
			Expect(stdout).To(ContainSubstring("Total Cycles: 50"))
		})

		It("should take the cycle limit from the environment", func() {
			Expect(os.Setenv(envMaxCycles, "40")).To(Succeed())
			DeferCleanup(os.Unsetenv, envMaxCycles)
			writeProgram(elfPath, insts.Assemble(insts.EncodeJAL(0, 0)))

			stdout, _, err := execute("run", elfPath)
			Expect(err).To(MatchError(system.ErrMaxCycles))
			Expect(stdout).To(ContainSubstring("Total Cycles: 40"))
		})

		It("should run on the functional emulator", func() {
			writeProgram(elfPath, exitProgram(1))

			stdout, _, err := execute("run", "--functional", elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring("tohost: 1 (passed: true)"))
			Expect(stdout).To(ContainSubstring("Instructions executed: 3"))
		})

		It("should report functional failures", func() {
			writeProgram(elfPath, exitProgram(5))

			_, _, err := execute("run", "--functional", elfPath)
			Expect(err).To(MatchError(&exitError{code: 5}))
		})

		It("should dump the signature", func() {
			writeProgram(elfPath, exitProgram(1))
			sigPath := filepath.Join(dir, "test.signature")

			_, _, err := execute("run", "--signature", sigPath, elfPath)
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(sigPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("0000cafe\n0000beef\n"))
		})

		It("should write the commit log and the trace database", func() {
			writeProgram(elfPath, exitProgram(1))
			commitPath := filepath.Join(dir, "commit.log")
			dbPath := filepath.Join(dir, "trace.sqlite3")

			_, _, err := execute("run",
				"--commit-log", commitPath,
				"--trace-db", dbPath,
				elfPath)
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(commitPath)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			Expect(lines).To(HaveLen(3))
			Expect(lines[0]).To(HavePrefix("core   0: 0x80000000"))

			reader, err := trace.OpenSQLiteTrace(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = reader.Close() }()

			retired, err := reader.ListRetired(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(retired)).To(Equal(len(lines)))
			Expect(retired[0].PC).To(Equal(codeAddr))
		})

		It("should log retirements at the highest verbosity", func() {
			writeProgram(elfPath, exitProgram(1))
			logPath := filepath.Join(dir, "trace.log")

			_, stderr, err := execute("run", "-vvv", "--trace-log", logPath, elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(stderr).To(ContainSubstring(`"msg"="run started"`))
			Expect(stderr).To(ContainSubstring(`"msg"="retire"`))

			data, err := os.ReadFile(logPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"pc"="0x80000000"`))
		})

		It("should stay quiet without -v", func() {
			writeProgram(elfPath, exitProgram(1))

			_, stderr, err := execute("run", elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(stderr).To(BeEmpty())
		})

		It("should fail on a missing program", func() {
			_, _, err := execute("run", filepath.Join(dir, "missing.elf"))
			Expect(err).To(MatchError(ContainSubstring("failed to load program")))
		})

		It("should fail on an unknown variant", func() {
			writeProgram(elfPath, exitProgram(1))

			_, _, err := execute("run", "--variant", "huge", elfPath)
			Expect(err).To(MatchError(config.ErrInvalidConfig))
		})
	})

	Describe("bench", func() {
		It("should print the core benchmarks as CSV", func() {
			stdout, _, err := execute("bench", "--core", "--format", "csv")
			Expect(err).NotTo(HaveOccurred())

			lines := strings.Split(strings.TrimSpace(stdout), "\n")
			Expect(lines).To(HaveLen(4))
			Expect(lines[1]).To(HavePrefix("loop_counted,"))
		})

		It("should print JSON", func() {
			stdout, _, err := execute("bench", "--core", "--format", "json", "--cache")
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring(`"cache_enabled": true`))
		})

		It("should fail when a benchmark needs a missing extension", func() {
			_, _, err := execute("bench", "--core", "--variant", "minimal",
				"--format", "csv", "--max-cycles", "5000")
			Expect(err).To(MatchError(ContainSubstring("benchmarks failed")))
		})

		It("should reject unknown formats", func() {
			_, _, err := execute("bench", "--format", "xml")
			Expect(err).To(MatchError(ContainSubstring("unknown output format")))
		})
	})

	Describe("config", func() {
		It("should list the variants", func() {
			stdout, _, err := execute("config", "--list")
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(Equal("lite\nminimal\nstandard\n"))
		})

		It("should print the selected variant", func() {
			stdout, _, err := execute("config", "--variant", "minimal")
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring(`"variant": "minimal"`))
		})

		It("should save a file that loads back", func() {
			path := filepath.Join(dir, "lite.yaml")

			stdout, _, err := execute("config", "--variant", "lite", "-o", path)
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring("Saved lite configuration"))

			loaded, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			expected, _ := config.Variant(config.VariantLite)
			Expect(loaded).To(Equal(expected))
		})

		It("should read the configuration file from the environment", func() {
			path := filepath.Join(dir, "custom.yml")
			Expect(os.WriteFile(path, []byte("variant: minimal\nnum_cores: 2\n"), 0644)).To(Succeed())
			Expect(os.Setenv(envConfig, path)).To(Succeed())
			DeferCleanup(os.Unsetenv, envConfig)

			stdout, _, err := execute("config", "--yaml")
			Expect(err).NotTo(HaveOccurred())
			Expect(stdout).To(ContainSubstring("num_cores: 2"))
		})
	})
})
