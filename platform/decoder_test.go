package platform_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/rv32sim/platform"
	"github.com/sarchlab/rv32sim/timing/bus"
)

var _ = Describe("Decoder", func() {
	var (
		mockCtrl *gomock.Controller
		low      *MockSlave
		high     *MockSlave
		decoder  *platform.Decoder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		low = NewMockSlave(mockCtrl)
		high = NewMockSlave(mockCtrl)

		decoder = platform.NewDecoder()
		Expect(decoder.AddSlave("low", 0x0000, 0x1000, low)).To(Succeed())
		Expect(decoder.AddSlave("high", 0x8000, 0x1000, high)).To(Succeed())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reject overlapping windows", func() {
		err := decoder.AddSlave("bad", 0x0800, 0x1000, low)
		Expect(err).To(MatchError(platform.ErrOverlap))
	})

	It("should reject an empty window", func() {
		Expect(decoder.AddSlave("empty", 0x4000, 0, low)).NotTo(Succeed())
	})

	It("should route to the owning slave and idle the others", func() {
		req := read(0x8010)
		high.EXPECT().Cycle(req).Return(bus.Response{Ack: true, Data: 9})
		low.EXPECT().Cycle(bus.Request{}).Return(bus.Response{})

		rsp := decoder.Cycle(req)

		Expect(rsp.Ack).To(BeTrue())
		Expect(rsp.Data).To(Equal(uint32(9)))
	})

	It("should answer unmapped transfers with an error", func() {
		low.EXPECT().Cycle(bus.Request{}).Return(bus.Response{})
		high.EXPECT().Cycle(bus.Request{}).Return(bus.Response{})

		rsp := decoder.Cycle(read(0x4000))

		Expect(rsp.Err).To(BeTrue())
	})

	It("should stay silent on idle cycles", func() {
		low.EXPECT().Cycle(bus.Request{}).Return(bus.Response{})
		high.EXPECT().Cycle(bus.Request{}).Return(bus.Response{})

		Expect(decoder.Cycle(bus.Request{}).Done()).To(BeFalse())
	})

	It("should look up slaves by address", func() {
		name, slave, ok := decoder.Lookup(0x0FFF)
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("low"))
		Expect(slave).To(BeIdenticalTo(low))

		_, _, ok = decoder.Lookup(0x1000)
		Expect(ok).To(BeFalse())
	})
})
