package platform_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/config"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/platform"
	"github.com/sarchlab/rv32sim/timing/bus"
)

func read(addr uint32) bus.Request {
	return bus.Request{Addr: addr, Sel: 0xF, Cyc: true, Stb: true}
}

func write(addr, data uint32, sel uint8) bus.Request {
	return bus.Request{Addr: addr, Data: data, Sel: sel, Cyc: true, Stb: true, We: true}
}

// waitFor repeats req until the slave ends the transfer and returns the
// final response with the number of cycles it took.
func waitFor(slave bus.Slave, req bus.Request) (bus.Response, int) {
	for cycles := 1; cycles < 100; cycles++ {
		rsp := slave.Cycle(req)
		if rsp.Done() {
			return rsp, cycles
		}
	}
	Fail("transfer never ended")
	return bus.Response{}, 0
}

var _ = Describe("RAM", func() {
	var (
		memory *emu.Memory
		region config.MemoryRegion
	)

	BeforeEach(func() {
		memory = emu.NewMemory()
		region = config.MemoryRegion{Name: "ram", Base: 0x8000_0000, Size: 0x1000}
	})

	It("should acknowledge on the first cycle without wait states", func() {
		memory.Write32(0x8000_0010, 0xCAFE_F00D)
		ram := platform.NewRAM(region, memory)

		rsp, cycles := waitFor(ram, read(0x8000_0010))

		Expect(cycles).To(Equal(1))
		Expect(rsp.Ack).To(BeTrue())
		Expect(rsp.Data).To(Equal(uint32(0xCAFE_F00D)))
	})

	It("should insert the configured wait states", func() {
		region.Latency = 3
		ram := platform.NewRAM(region, memory)

		_, cycles := waitFor(ram, read(0x8000_0000))

		Expect(cycles).To(Equal(4))
		Expect(ram.Stats().WaitCycles).To(Equal(uint64(3)))
	})

	It("should restart the wait states when the master drops the strobe", func() {
		region.Latency = 2
		ram := platform.NewRAM(region, memory)

		Expect(ram.Cycle(read(0x8000_0000)).Done()).To(BeFalse())
		Expect(ram.Cycle(bus.Request{}).Done()).To(BeFalse())

		_, cycles := waitFor(ram, read(0x8000_0000))
		Expect(cycles).To(Equal(3))
	})

	It("should honor the byte enables", func() {
		memory.Write32(0x8000_0020, 0x1122_3344)
		ram := platform.NewRAM(region, memory)

		rsp, _ := waitFor(ram, write(0x8000_0020, 0xAABB_CCDD, 0b0110))

		Expect(rsp.Ack).To(BeTrue())
		Expect(memory.Read32(0x8000_0020)).To(Equal(uint32(0x11BB_CC44)))
		Expect(ram.Stats().Writes).To(Equal(uint64(1)))
	})

	It("should reject writes to a read-only region", func() {
		region.ReadOnly = true
		memory.Write32(0x8000_0000, 7)
		ram := platform.NewRAM(region, memory)

		rsp := ram.Cycle(write(0x8000_0000, 1, 0xF))

		Expect(rsp.Err).To(BeTrue())
		Expect(rsp.Ack).To(BeFalse())
		Expect(memory.Read32(0x8000_0000)).To(Equal(uint32(7)))
		Expect(ram.Stats().Errors).To(Equal(uint64(1)))
	})

	It("should answer addresses outside the region with an error", func() {
		ram := platform.NewRAM(region, memory)
		Expect(ram.Cycle(read(0x8000_1000)).Err).To(BeTrue())
	})

	Context("with a cache", func() {
		BeforeEach(func() {
			region.Cache = &config.CacheConfig{
				Size: 256, Associativity: 2, BlockSize: 16,
				HitLatency: 1, MissLatency: 6,
			}
		})

		It("should take the miss latency then the hit latency", func() {
			memory.Write32(0x8000_0004, 42)
			ram := platform.NewRAM(region, memory)

			rsp, cycles := waitFor(ram, read(0x8000_0004))
			Expect(cycles).To(Equal(7))
			Expect(rsp.Data).To(Equal(uint32(42)))

			ram.Cycle(bus.Request{})

			rsp, cycles = waitFor(ram, read(0x8000_0008))
			Expect(cycles).To(Equal(2))
			Expect(ram.Cache().Stats().Hits).To(Equal(uint64(1)))
		})

		It("should expose dirty data to the host before the flush", func() {
			ram := platform.NewRAM(region, memory)

			waitFor(ram, write(0x8000_0040, 0x55, 0xF))

			Expect(memory.Read32(0x8000_0040)).To(BeZero())
			Expect(ram.ReadWord(0x8000_0040)).To(Equal(uint32(0x55)))

			ram.Flush()
			Expect(memory.Read32(0x8000_0040)).To(Equal(uint32(0x55)))
		})
	})
})
