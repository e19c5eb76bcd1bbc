// Package config provides the configuration surface of the simulator: the
// per-core feature set fixed at construction time, the platform memory map
// and the run limits, with JSON and YAML file support.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultResetAddress is the reset vector of the default variants.
const DefaultResetAddress uint32 = 0x8000_0000

// CoreConfig holds the construction-time options of one core.
type CoreConfig struct {
	// ResetAddress is the initial pc and the reset value of mtvec.
	ResetAddress uint32 `json:"reset_address" yaml:"reset_address"`

	// EnableRV32M enables the multiplier/divider and the M instructions.
	EnableRV32M bool `json:"enable_rv32m" yaml:"enable_rv32m"`

	// EnableRV32A enables LR/SC and the atomic memory operations.
	EnableRV32A bool `json:"enable_rv32a" yaml:"enable_rv32a"`

	// EnableExtraCSR adds the identification registers and the 64-bit
	// cycle and instruction-retired counters.
	EnableExtraCSR bool `json:"enable_extra_csr" yaml:"enable_extra_csr"`

	// EnableUserMode makes User mode reachable through mret.
	EnableUserMode bool `json:"enable_user_mode" yaml:"enable_user_mode"`

	// EnableTriggers adds NumTriggers debug match triggers.
	EnableTriggers bool `json:"enable_triggers" yaml:"enable_triggers"`

	// NumTriggers must be a non-zero power of two when triggers are enabled.
	NumTriggers uint32 `json:"num_triggers" yaml:"num_triggers"`

	// HartID is reported by mhartid.
	HartID uint32 `json:"hart_id" yaml:"hart_id"`
}

// CacheConfig describes a memory-side cache used to derive access latency.
type CacheConfig struct {
	// Size in bytes
	Size int `json:"size" yaml:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity" yaml:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size" yaml:"block_size"`
	// HitLatency in wait states
	HitLatency uint64 `json:"hit_latency" yaml:"hit_latency"`
	// MissLatency in wait states
	MissLatency uint64 `json:"miss_latency" yaml:"miss_latency"`
}

// MemoryRegion is one bus slave of the platform memory map.
type MemoryRegion struct {
	Name string `json:"name" yaml:"name"`
	Base uint32 `json:"base" yaml:"base"`
	Size uint32 `json:"size" yaml:"size"`

	// Latency is the number of wait states before the acknowledge.
	Latency uint64 `json:"latency" yaml:"latency"`

	// ReadOnly regions answer writes with a bus error.
	ReadOnly bool `json:"read_only" yaml:"read_only"`

	// Cache, when set, replaces Latency with hit/miss latencies.
	Cache *CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`
}

// Contains reports whether addr falls into the region.
func (r MemoryRegion) Contains(addr uint32) bool {
	return addr >= r.Base && addr-r.Base < r.Size
}

// End returns the first address past the region.
func (r MemoryRegion) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

// CLINTSize is the size of the core-local interruptor register window.
const CLINTSize uint32 = 0x1000

// CLINTConfig places the core-local interruptor that drives the timer and
// software interrupt lines of every hart.
type CLINTConfig struct {
	Base uint32 `json:"base" yaml:"base"`

	// ClockDivider is the number of core cycles per mtime increment.
	ClockDivider uint64 `json:"clock_divider" yaml:"clock_divider"`
}

// Region returns the memory-map window of the interruptor.
func (c CLINTConfig) Region() MemoryRegion {
	return MemoryRegion{Name: "clint", Base: c.Base, Size: CLINTSize}
}

// SystemConfig holds everything needed to build a simulated system.
type SystemConfig struct {
	// Variant is the name of the preset the configuration started from.
	Variant string `json:"variant" yaml:"variant"`

	// Core is the template for every core. Hart IDs are assigned in order.
	Core CoreConfig `json:"core" yaml:"core"`

	// NumCores is the number of harts sharing the bus.
	NumCores int `json:"num_cores" yaml:"num_cores"`

	// Regions is the platform memory map.
	Regions []MemoryRegion `json:"regions" yaml:"regions"`

	// CLINT, when set, adds a core-local interruptor to the bus.
	CLINT *CLINTConfig `json:"clint,omitempty" yaml:"clint,omitempty"`

	// FreqMHz is the core clock frequency.
	FreqMHz uint64 `json:"freq_mhz" yaml:"freq_mhz"`

	// MaxCycles stops the run with an error. 0 means no limit.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`

	// ToHostSymbol is the ELF symbol polled for the test-bench exit code.
	ToHostSymbol string `json:"tohost_symbol" yaml:"tohost_symbol"`
}

// Validate checks the core options.
func (c *CoreConfig) Validate() error {
	if c.ResetAddress&0b11 != 0 {
		return fmt.Errorf("%w: reset_address 0x%08X is not word aligned",
			ErrInvalidConfig, c.ResetAddress)
	}
	if c.EnableTriggers {
		n := c.NumTriggers
		if n == 0 || n&(n-1) != 0 {
			return fmt.Errorf("%w: num_triggers must be a power of 2, got %d",
				ErrInvalidConfig, n)
		}
	}
	return nil
}

// Validate checks the whole system configuration.
func (c *SystemConfig) Validate() error {
	if err := c.Core.Validate(); err != nil {
		return err
	}
	if c.NumCores < 1 {
		return fmt.Errorf("%w: num_cores must be > 0", ErrInvalidConfig)
	}
	if c.FreqMHz == 0 {
		return fmt.Errorf("%w: freq_mhz must be > 0", ErrInvalidConfig)
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("%w: at least one memory region is required", ErrInvalidConfig)
	}

	regions := c.Regions
	if c.CLINT != nil {
		if c.CLINT.ClockDivider == 0 {
			return fmt.Errorf("%w: clint clock_divider must be > 0", ErrInvalidConfig)
		}
		if c.CLINT.Base&(CLINTSize-1) != 0 {
			return fmt.Errorf("%w: clint base 0x%08X is not 4 KiB aligned",
				ErrInvalidConfig, c.CLINT.Base)
		}
		regions = append(append([]MemoryRegion(nil), c.Regions...), c.CLINT.Region())
	}

	for i, r := range regions {
		if r.Size == 0 {
			return fmt.Errorf("%w: region %q has zero size", ErrInvalidConfig, r.Name)
		}
		if r.End() > 1<<32 {
			return fmt.Errorf("%w: region %q exceeds the address space", ErrInvalidConfig, r.Name)
		}
		if r.Cache != nil {
			if err := r.Cache.Validate(); err != nil {
				return fmt.Errorf("region %q: %w", r.Name, err)
			}
		}
		for _, other := range regions[:i] {
			if uint64(r.Base) < other.End() && uint64(other.Base) < r.End() {
				return fmt.Errorf("%w: regions %q and %q overlap",
					ErrInvalidConfig, other.Name, r.Name)
			}
		}
	}

	return nil
}

// Validate checks the cache geometry.
func (c *CacheConfig) Validate() error {
	if c.BlockSize < 4 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("%w: cache block_size must be a power of 2 >= 4", ErrInvalidConfig)
	}
	if c.Associativity < 1 {
		return fmt.Errorf("%w: cache associativity must be > 0", ErrInvalidConfig)
	}
	if c.Size < c.BlockSize*c.Associativity || c.Size%(c.BlockSize*c.Associativity) != 0 {
		return fmt.Errorf("%w: cache size must be a multiple of block_size*associativity",
			ErrInvalidConfig)
	}
	return nil
}

// Clone returns a deep copy of the SystemConfig.
func (c *SystemConfig) Clone() *SystemConfig {
	clone := *c
	clone.Regions = make([]MemoryRegion, len(c.Regions))
	for i, r := range c.Regions {
		clone.Regions[i] = r
		if r.Cache != nil {
			cache := *r.Cache
			clone.Regions[i].Cache = &cache
		}
	}
	if c.CLINT != nil {
		clint := *c.CLINT
		clone.CLINT = &clint
	}
	return &clone
}

// Region returns the region with the given name.
func (c *SystemConfig) Region(name string) (*MemoryRegion, bool) {
	for i := range c.Regions {
		if c.Regions[i].Name == name {
			return &c.Regions[i], true
		}
	}
	return nil, false
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

// LoadConfig loads a SystemConfig from a JSON or YAML file, chosen by the
// file extension. Fields missing from the file keep the values of the
// variant the file names, or of the standard variant.
func LoadConfig(path string) (*SystemConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var probe struct {
		Variant string `json:"variant" yaml:"variant"`
	}
	if err := unmarshal(path, data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	base := VariantStandard
	if probe.Variant != "" && probe.Variant != VariantCustom {
		base = probe.Variant
	}
	config, err := Variant(base)
	if err != nil {
		return nil, err
	}

	// Regions in the file replace the preset map instead of merging.
	config.Regions = nil
	if err := unmarshal(path, data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if config.Regions == nil {
		config.Regions = DefaultRegions()
	}
	if probe.Variant == "" {
		config.Variant = VariantCustom
	}

	return config, nil
}

func unmarshal(path string, data []byte, v interface{}) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// SaveConfig writes a SystemConfig to a JSON or YAML file, chosen by the
// file extension.
func (c *SystemConfig) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
