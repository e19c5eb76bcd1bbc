// Package trace provides hooks that record what the cores retire and trap,
// as log lines, as a text commit log or in a SQLite database.
package trace

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rv32sim/timing/core"
)

// LogHook logs every retirement and trap it is attached to.
type LogHook struct {
	logger logr.Logger
}

// NewLogHook creates a hook that logs to logger.
func NewLogHook(logger logr.Logger) *LogHook {
	return &LogHook{logger: logger}
}

// Func implements sim.Hook.
func (h *LogHook) Func(ctx sim.HookCtx) {
	switch info := ctx.Item.(type) {
	case core.RetireInfo:
		kv := []interface{}{
			"hart", info.HartID,
			"cycle", info.Cycle,
			"pc", fmt.Sprintf("0x%08X", info.PC),
			"op", info.Op.String(),
		}
		if info.RdWritten {
			kv = append(kv, "rd", info.Rd, "value", fmt.Sprintf("0x%08X", info.RdValue))
		}
		h.logger.Info("retire", kv...)
	case core.TrapInfo:
		h.logger.Info("trap",
			"hart", info.HartID,
			"cycle", info.Cycle,
			"pc", fmt.Sprintf("0x%08X", info.PC),
			"cause", info.Describe(),
			"tval", fmt.Sprintf("0x%08X", info.Value))
	case core.HaltRequestInfo:
		h.logger.Info("halt request",
			"hart", info.HartID,
			"cycle", info.Cycle,
			"trigger", info.Trigger)
	}
}

// CommitWriter writes one line per retired instruction in the commit-log
// format of instruction-set simulators, so that runs can be diffed against
// a reference:
//
//	core   0: 0x80000000 (0x00500093) x1  0x00000005
type CommitWriter struct {
	w   io.Writer
	err error
}

// NewCommitWriter creates a commit log writer.
func NewCommitWriter(w io.Writer) *CommitWriter {
	return &CommitWriter{w: w}
}

// Err returns the first write error.
func (c *CommitWriter) Err() error {
	return c.err
}

// Func implements sim.Hook.
func (c *CommitWriter) Func(ctx sim.HookCtx) {
	if c.err != nil {
		return
	}

	info, ok := ctx.Item.(core.RetireInfo)
	if !ok {
		return
	}

	line := fmt.Sprintf("core %3d: 0x%08x (0x%08x)", info.HartID, info.PC, info.Word)
	if info.RdWritten && info.Rd != 0 {
		line += fmt.Sprintf(" x%-2d 0x%08x", info.Rd, info.RdValue)
	}

	_, c.err = fmt.Fprintln(c.w, line)
}
