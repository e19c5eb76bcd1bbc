package core

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

func hex(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}

// notify logs and hooks the events of the edge that was just committed. pc
// is the program counter before the edge.
func (c *Core) notify(n transition, pc uint32, retired RetireInfo, trap TrapInfo) {
	if n.retire {
		c.logger.V(2).Info("retire",
			"hart", retired.HartID,
			"cycle", retired.Cycle,
			"pc", hex(retired.PC),
			"op", retired.Op.String(),
			"next", hex(retired.NextPC))
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosRetire,
			Item:   retired,
		})
	}

	if n.trap {
		c.logger.V(1).Info("trap",
			"hart", trap.HartID,
			"cycle", trap.Cycle,
			"pc", hex(trap.PC),
			"cause", trap.Describe(),
			"tval", hex(trap.Value),
			"target", hex(trap.Target))
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosTrap,
			Item:   trap,
		})
	}

	if n.halt.HaltRequest {
		info := HaltRequestInfo{
			HartID:  c.cfg.HartID,
			Cycle:   c.stats.Cycles - 1,
			PC:      pc,
			Trigger: n.halt.Index,
		}
		c.logger.V(1).Info("halt request",
			"hart", info.HartID,
			"pc", hex(info.PC),
			"trigger", info.Trigger)
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosHaltRequest,
			Item:   info,
		})
	}
}
