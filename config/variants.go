package config

import (
	"fmt"
	"sort"
)

// Variant names.
const (
	VariantMinimal  = "minimal"
	VariantLite     = "lite"
	VariantStandard = "standard"
	VariantCustom   = "custom"
)

var variants = map[string]func() CoreConfig{
	// RV32I, Machine mode only.
	VariantMinimal: func() CoreConfig {
		return CoreConfig{ResetAddress: DefaultResetAddress}
	},
	// RV32IM with counters.
	VariantLite: func() CoreConfig {
		return CoreConfig{
			ResetAddress:   DefaultResetAddress,
			EnableRV32M:    true,
			EnableExtraCSR: true,
		}
	},
	// RV32IMA with counters, User mode and four triggers.
	VariantStandard: func() CoreConfig {
		return CoreConfig{
			ResetAddress:   DefaultResetAddress,
			EnableRV32M:    true,
			EnableRV32A:    true,
			EnableExtraCSR: true,
			EnableUserMode: true,
			EnableTriggers: true,
			NumTriggers:    4,
		}
	},
}

// Variants returns the names of the built-in variants.
func Variants() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegions returns the default memory map: 64 KiB of zero-wait-state
// RAM at the reset address.
func DefaultRegions() []MemoryRegion {
	return []MemoryRegion{
		{
			Name: "ram",
			Base: DefaultResetAddress,
			Size: 64 * 1024,
		},
	}
}

// Variant returns the SystemConfig of a built-in variant. The custom
// variant has no preset and must come from a file.
func Variant(name string) (*SystemConfig, error) {
	core, ok := variants[name]
	if !ok {
		if name == VariantCustom {
			return nil, fmt.Errorf("%w: the custom variant needs a configuration file",
				ErrInvalidConfig)
		}
		return nil, fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, name)
	}

	return &SystemConfig{
		Variant:      name,
		Core:         core(),
		NumCores:     1,
		Regions:      DefaultRegions(),
		CLINT:        DefaultCLINT(),
		FreqMHz:      100,
		ToHostSymbol: "tohost",
	}, nil
}

// DefaultCLINT returns the interruptor placement of the built-in variants.
func DefaultCLINT() *CLINTConfig {
	return &CLINTConfig{Base: 0x0200_0000, ClockDivider: 10}
}

// DefaultConfig returns the standard variant.
func DefaultConfig() *SystemConfig {
	config, _ := Variant(VariantStandard)
	return config
}
