package insts

// DecodeUnit is the registered form of the Decoder used by the core. The
// decoded instruction becomes visible one cycle after an enabled Tick and is
// held unchanged while the unit is disabled.
type DecodeUnit struct {
	decoder *Decoder
	current Instruction
}

// NewDecodeUnit creates a DecodeUnit around the given decoder.
func NewDecodeUnit(decoder *Decoder) *DecodeUnit {
	return &DecodeUnit{decoder: decoder}
}

// Current returns the latched instruction.
func (u *DecodeUnit) Current() *Instruction {
	return &u.current
}

// Tick advances the unit by one clock edge.
func (u *DecodeUnit) Tick(enable bool, word uint32, priv PrivMode) {
	if !enable {
		return
	}
	u.decoder.DecodeInto(&u.current, word, priv)
}

// Reset clears the latched instruction.
func (u *DecodeUnit) Reset() {
	u.current = Instruction{}
}
