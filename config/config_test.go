package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/config"
)

var _ = Describe("Config", func() {
	Describe("Variants", func() {
		It("should list the built-in variants", func() {
			Expect(config.Variants()).To(Equal([]string{"lite", "minimal", "standard"}))
		})

		It("should build a plain RV32I core for minimal", func() {
			c, err := config.Variant(config.VariantMinimal)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Core.EnableRV32M).To(BeFalse())
			Expect(c.Core.EnableRV32A).To(BeFalse())
			Expect(c.Core.EnableUserMode).To(BeFalse())
			Expect(c.Core.ResetAddress).To(Equal(config.DefaultResetAddress))
			Expect(c.Validate()).To(Succeed())
		})

		It("should enable everything for standard", func() {
			c := config.DefaultConfig()
			Expect(c.Variant).To(Equal(config.VariantStandard))
			Expect(c.Core.EnableRV32M).To(BeTrue())
			Expect(c.Core.EnableRV32A).To(BeTrue())
			Expect(c.Core.EnableTriggers).To(BeTrue())
			Expect(c.Core.NumTriggers).To(Equal(uint32(4)))
			Expect(c.Validate()).To(Succeed())
		})

		It("should reject the custom variant without a file", func() {
			_, err := config.Variant(config.VariantCustom)
			Expect(err).To(MatchError(config.ErrInvalidConfig))
		})

		It("should reject unknown variants", func() {
			_, err := config.Variant("huge")
			Expect(err).To(MatchError(config.ErrInvalidConfig))
		})
	})

	Describe("Validate", func() {
		var c *config.SystemConfig

		BeforeEach(func() {
			c = config.DefaultConfig()
		})

		It("should reject a trigger count that is not a power of two", func() {
			c.Core.NumTriggers = 3
			Expect(c.Validate()).To(MatchError(config.ErrInvalidConfig))
		})

		It("should reject zero triggers when triggers are enabled", func() {
			c.Core.NumTriggers = 0
			Expect(c.Validate()).To(MatchError(config.ErrInvalidConfig))
		})

		It("should ignore the trigger count when triggers are disabled", func() {
			c.Core.EnableTriggers = false
			c.Core.NumTriggers = 3
			Expect(c.Validate()).To(Succeed())
		})

		It("should reject a misaligned reset address", func() {
			c.Core.ResetAddress = 0x8000_0002
			Expect(c.Validate()).To(MatchError(config.ErrInvalidConfig))
		})

		It("should reject zero cores", func() {
			c.NumCores = 0
			Expect(c.Validate()).To(MatchError(config.ErrInvalidConfig))
		})

		It("should reject overlapping regions", func() {
			c.Regions = append(c.Regions, config.MemoryRegion{
				Name: "rom", Base: config.DefaultResetAddress + 0x100, Size: 0x100,
			})
			Expect(c.Validate()).To(MatchError(ContainSubstring("overlap")))
		})

		It("should reject regions past the end of the address space", func() {
			c.Regions = []config.MemoryRegion{{Name: "top", Base: 0xFFFF_F000, Size: 0x2000}}
			Expect(c.Validate()).To(MatchError(config.ErrInvalidConfig))
		})

		It("should reject a bad cache geometry", func() {
			c.Regions[0].Cache = &config.CacheConfig{Size: 1000, Associativity: 2, BlockSize: 16}
			Expect(c.Validate()).To(MatchError(config.ErrInvalidConfig))
		})

		It("should reject an interruptor overlapping a region", func() {
			c.CLINT = &config.CLINTConfig{Base: config.DefaultResetAddress, ClockDivider: 10}
			Expect(c.Validate()).To(MatchError(ContainSubstring("overlap")))
		})

		It("should reject an interruptor without a clock divider", func() {
			c.CLINT.ClockDivider = 0
			Expect(c.Validate()).To(MatchError(config.ErrInvalidConfig))
		})

		It("should accept a good cache geometry", func() {
			c.Regions[0].Cache = &config.CacheConfig{
				Size: 1024, Associativity: 2, BlockSize: 16, MissLatency: 8,
			}
			Expect(c.Validate()).To(Succeed())
		})
	})

	Describe("MemoryRegion", func() {
		It("should report containment", func() {
			r := config.MemoryRegion{Base: 0x1000, Size: 0x100}
			Expect(r.Contains(0x1000)).To(BeTrue())
			Expect(r.Contains(0x10FF)).To(BeTrue())
			Expect(r.Contains(0x1100)).To(BeFalse())
			Expect(r.Contains(0x0FFF)).To(BeFalse())
		})
	})

	Describe("Clone", func() {
		It("should deep copy regions and caches", func() {
			c := config.DefaultConfig()
			c.Regions[0].Cache = &config.CacheConfig{Size: 1024, Associativity: 2, BlockSize: 16}

			clone := c.Clone()
			clone.Regions[0].Name = "changed"
			clone.Regions[0].Cache.Size = 2048
			clone.CLINT.Base = 0

			Expect(c.Regions[0].Name).To(Equal("ram"))
			Expect(c.Regions[0].Cache.Size).To(Equal(1024))
			Expect(c.CLINT.Base).To(Equal(uint32(0x0200_0000)))
		})
	})

	Describe("Files", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "rv32sim-config")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(dir)
		})

		It("should round trip through JSON", func() {
			c := config.DefaultConfig()
			c.NumCores = 2
			c.MaxCycles = 5000
			path := filepath.Join(dir, "system.json")

			Expect(c.SaveConfig(path)).To(Succeed())
			loaded, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(c))
		})

		It("should round trip through YAML", func() {
			c, _ := config.Variant(config.VariantLite)
			c.Regions = append(c.Regions, config.MemoryRegion{
				Name: "rom", Base: 0x1000, Size: 0x1000, Latency: 2, ReadOnly: true,
			})
			path := filepath.Join(dir, "system.yaml")

			Expect(c.SaveConfig(path)).To(Succeed())
			loaded, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(c))
		})

		It("should fill missing fields from the named variant", func() {
			path := filepath.Join(dir, "partial.yml")
			Expect(os.WriteFile(path, []byte("variant: minimal\nmax_cycles: 77\n"), 0644)).To(Succeed())

			loaded, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Variant).To(Equal("minimal"))
			Expect(loaded.MaxCycles).To(Equal(uint64(77)))
			Expect(loaded.Core.EnableRV32M).To(BeFalse())
			Expect(loaded.Regions).To(Equal(config.DefaultRegions()))
		})

		It("should mark files without a variant as custom", func() {
			path := filepath.Join(dir, "custom.json")
			Expect(os.WriteFile(path, []byte(`{"num_cores": 4}`), 0644)).To(Succeed())

			loaded, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Variant).To(Equal(config.VariantCustom))
			Expect(loaded.NumCores).To(Equal(4))
			Expect(loaded.Core.EnableRV32A).To(BeTrue())
		})

		It("should fail on a missing file", func() {
			_, err := config.LoadConfig(filepath.Join(dir, "missing.json"))
			Expect(err).To(HaveOccurred())
		})

		It("should fail on malformed content", func() {
			path := filepath.Join(dir, "bad.json")
			Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())
			_, err := config.LoadConfig(path)
			Expect(err).To(MatchError(ContainSubstring("failed to parse config")))
		})
	})
})
