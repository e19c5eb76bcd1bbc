package platform_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/rv32sim/platform"
	"github.com/sarchlab/rv32sim/timing/bus"
)

var _ = Describe("Arbiter", func() {
	var (
		mockCtrl *gomock.Controller
		slave    *MockSlave
		arbiter  *platform.Arbiter
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		slave = NewMockSlave(mockCtrl)
		arbiter = platform.NewArbiter(slave, 3)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should only answer the owner", func() {
		reqs := []bus.Request{read(0x10), read(0x20), {}}
		slave.EXPECT().Cycle(reqs[0]).Return(bus.Response{Ack: true, Data: 1})

		rsps, snoop := arbiter.Cycle(reqs)

		Expect(rsps[0].Ack).To(BeTrue())
		Expect(rsps[1].Done()).To(BeFalse())
		Expect(snoop.Valid).To(BeTrue())
		Expect(snoop.Addr).To(Equal(uint32(0x10)))
	})

	It("should keep the grant while the owner strobes", func() {
		reqs := []bus.Request{read(0x10), read(0x20), {}}
		slave.EXPECT().Cycle(reqs[0]).Return(bus.Response{}).Times(2)

		arbiter.Cycle(reqs)
		arbiter.Cycle(reqs)

		Expect(arbiter.Grant()).To(Equal(0))
	})

	It("should keep the grant while the owner holds a lock", func() {
		locked := bus.Request{Cyc: true, Lock: true}
		reqs := []bus.Request{locked, read(0x20), {}}
		slave.EXPECT().Cycle(locked).Return(bus.Response{})

		arbiter.Cycle(reqs)

		Expect(arbiter.Grant()).To(Equal(0))
	})

	It("should rotate to the next requesting master", func() {
		reqs := []bus.Request{{}, {}, read(0x30)}
		slave.EXPECT().Cycle(bus.Request{}).Return(bus.Response{})
		arbiter.Cycle(reqs)
		Expect(arbiter.Grant()).To(Equal(2))

		reqs = []bus.Request{read(0x10), read(0x20), {}}
		slave.EXPECT().Cycle(bus.Request{}).Return(bus.Response{})
		arbiter.Cycle(reqs)
		Expect(arbiter.Grant()).To(Equal(0))

		slave.EXPECT().Cycle(reqs[0]).Return(bus.Response{Ack: true})
		arbiter.Cycle(reqs)

		reqs[0] = bus.Request{}
		slave.EXPECT().Cycle(bus.Request{}).Return(bus.Response{})
		arbiter.Cycle(reqs)
		Expect(arbiter.Grant()).To(Equal(1))
	})

	It("should keep the grant when nobody else requests", func() {
		slave.EXPECT().Cycle(bus.Request{}).Return(bus.Response{})
		arbiter.Cycle([]bus.Request{{}, {}, {}})
		Expect(arbiter.Grant()).To(Equal(0))
	})
})
