package trace_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr/funcr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/system"
	"github.com/sarchlab/rv32sim/timing/core"
	"github.com/sarchlab/rv32sim/trace"
)

var (
	retired = core.RetireInfo{
		HartID:    0,
		Cycle:     3,
		PC:        0x8000_0000,
		Word:      insts.EncodeADDI(1, 0, 5),
		Op:        insts.OpADDI,
		NextPC:    0x8000_0004,
		RdWritten: true,
		Rd:        1,
		RdValue:   5,
	}
	trapped = core.TrapInfo{
		HartID: 1,
		Cycle:  9,
		PC:     0x8000_0008,
		Cause:  insts.CauseIllegalInst,
		Value:  0xFFFF_FFFF,
		Target: 0x8000_0100,
	}
)

func invoke(hook sim.Hook, items ...interface{}) {
	for _, item := range items {
		pos := core.HookPosRetire
		if _, ok := item.(core.TrapInfo); ok {
			pos = core.HookPosTrap
		}
		hook.Func(sim.HookCtx{Pos: pos, Item: item})
	}
}

var _ = Describe("LogHook", func() {
	It("should log retirements and traps", func() {
		var lines []string
		logger := funcr.New(func(prefix, args string) {
			lines = append(lines, args)
		}, funcr.Options{})

		invoke(trace.NewLogHook(logger), retired, trapped, "ignored")

		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(ContainSubstring(`"msg"="retire"`))
		Expect(lines[0]).To(ContainSubstring(`"pc"="0x80000000"`))
		Expect(lines[0]).To(ContainSubstring(`"rd"=1`))
		Expect(lines[1]).To(ContainSubstring(`"msg"="trap"`))
		Expect(lines[1]).To(ContainSubstring(`"hart"=1`))
	})
})

var _ = Describe("CommitWriter", func() {
	It("should write one line per retirement", func() {
		var out bytes.Buffer
		w := trace.NewCommitWriter(&out)

		noWrite := retired
		noWrite.RdWritten = false
		invoke(w, retired, trapped, noWrite)

		Expect(w.Err()).NotTo(HaveOccurred())
		Expect(out.String()).To(Equal(
			"core   0: 0x80000000 (0x00500093) x1  0x00000005\n" +
				"core   0: 0x80000000 (0x00500093)\n"))
	})

	It("should follow a running system", func() {
		var out bytes.Buffer
		w := trace.NewCommitWriter(&out)

		cfg := config.DefaultConfig()
		cfg.MaxCycles = 12
		s, err := system.New(cfg, system.WithHook(w))
		Expect(err).NotTo(HaveOccurred())
		s.Memory().LoadProgram(config.DefaultResetAddress, insts.Assemble(
			insts.EncodeADDI(1, 0, 5),
			insts.EncodeADD(2, 1, 1),
			insts.EncodeJAL(0, 0),
		))

		_, err = s.Run()
		Expect(err).To(MatchError(system.ErrMaxCycles))
		Expect(out.String()).To(HavePrefix(
			"core   0: 0x80000000 (0x00500093) x1  0x00000005\n" +
				"core   0: 0x80000004 (0x00108133) x2  0x0000000a\n"))
	})
})

var _ = Describe("SQLiteTracer", func() {
	var (
		dir  string
		path string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "rv32sim-trace")
		Expect(err).NotTo(HaveOccurred())
		path = filepath.Join(dir, "trace.sqlite3")
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("should store retirements and traps", func() {
		tracer, err := trace.NewSQLiteTracer(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(tracer.Path()).To(Equal(path))

		invoke(tracer, retired, trapped)
		Expect(tracer.Close()).To(Succeed())

		reader, err := trace.OpenSQLiteTrace(path)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = reader.Close() }()

		retires, err := reader.ListRetired(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(retires).To(Equal([]trace.RetireRecord{{
			Hart:    0,
			Cycle:   3,
			PC:      0x8000_0000,
			Word:    retired.Word,
			Op:      insts.OpADDI.String(),
			NextPC:  0x8000_0004,
			Rd:      1,
			RdValue: 5,
		}}))

		traps, err := reader.ListTraps()
		Expect(err).NotTo(HaveOccurred())
		Expect(traps).To(HaveLen(1))
		Expect(traps[0].Hart).To(Equal(uint32(1)))
		Expect(traps[0].Cause).To(Equal(uint32(insts.CauseIllegalInst)))
		Expect(traps[0].Interrupt).To(BeFalse())
		Expect(traps[0].Name).To(Equal(trapped.Describe()))
	})

	It("should flush in batches", func() {
		tracer, err := trace.NewSQLiteTracer(path)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = tracer.Close() }()
		tracer.SetBatchSize(2)

		invoke(tracer, retired, retired)

		reader, err := trace.OpenSQLiteTrace(path)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = reader.Close() }()

		retires, err := reader.ListRetired(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(retires).To(HaveLen(2))
	})

	It("should refuse to overwrite an existing trace", func() {
		Expect(os.WriteFile(path, nil, 0644)).To(Succeed())

		_, err := trace.NewSQLiteTracer(path)
		Expect(err).To(MatchError(ContainSubstring("already exists")))
	})

	It("should fail to open a missing trace", func() {
		_, err := trace.OpenSQLiteTrace(filepath.Join(dir, "missing.sqlite3"))
		Expect(err).To(HaveOccurred())
	})
})
