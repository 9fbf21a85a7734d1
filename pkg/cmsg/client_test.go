package cmsg

import (
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/monitor"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// noopCapability implements domain.Capability with no-op bodies, enough
// to exercise Client's precondition checks without a real socket.
type noopCapability struct{ sendCalls int }

func (n *noopCapability) Connect(string, domain.ConnectOptions) (domain.Handle, error) { return nil, nil }
func (n *noopCapability) Send(domain.Handle, *message.Message) error                    { n.sendCalls++; return nil }
func (n *noopCapability) SyncSend(domain.Handle, *message.Message, time.Duration) (int32, error) {
	return 0, nil
}
func (n *noopCapability) Flush(domain.Handle) error { return nil }
func (n *noopCapability) Subscribe(domain.Handle, string, string, domain.Callback, domain.SubscribeOptions) (domain.SubscriptionID, error) {
	return 0, nil
}
func (n *noopCapability) Unsubscribe(domain.Handle, domain.SubscriptionID) error { return nil }
func (n *noopCapability) SubscribeAndGet(domain.Handle, string, string, time.Duration) (*message.Message, error) {
	return nil, nil
}
func (n *noopCapability) SendAndGet(domain.Handle, *message.Message, time.Duration) (*message.Message, error) {
	return nil, nil
}
func (n *noopCapability) Monitor(domain.Handle, time.Duration) (*monitor.Report, error) {
	return nil, nil
}
func (n *noopCapability) Start(domain.Handle) error                                  { return nil }
func (n *noopCapability) Stop(domain.Handle) error                                   { return nil }
func (n *noopCapability) Disconnect(domain.Handle) error                             { return nil }
func (n *noopCapability) SetShutdownHandler(domain.Handle, domain.ShutdownHandler, any) error {
	return nil
}
func (n *noopCapability) ShutdownClients(domain.Handle, bool) error { return nil }
func (n *noopCapability) ShutdownServers(domain.Handle) error       { return nil }

type noopHandle struct{ connected bool }

func (h noopHandle) Connected() bool { return h.connected }

var _ = Describe("Client preconditions", func() {
	It("rejects Send on a nil handle", func() {
		c := &Client{}
		Expect(c.Send(&message.Message{})).To(MatchError(cmsgerr.New(cmsgerr.BadArgument)))
	})

	It("rejects operations once disconnected", func() {
		cap := &noopCapability{}
		c := &Client{cap: cap, handle: noopHandle{connected: true}}
		c.connected.Store(true)

		Expect(c.Disconnect()).To(Succeed())
		err := c.Send(&message.Message{})
		Expect(err).To(MatchError(cmsgerr.New(cmsgerr.LostConnection)))
		Expect(cap.sendCalls).To(Equal(0))
	})

	It("dispatches once connected", func() {
		cap := &noopCapability{}
		c := &Client{cap: cap, handle: noopHandle{connected: true}}
		c.connected.Store(true)

		Expect(c.Send(&message.Message{})).To(Succeed())
		Expect(cap.sendCalls).To(Equal(1))
	})

	It("atomically clears connected so a second Disconnect short-circuits", func() {
		cap := &noopCapability{}
		c := &Client{cap: cap, handle: noopHandle{connected: true}}
		c.connected.Store(true)

		Expect(c.Disconnect()).To(Succeed())
		Expect(c.Disconnect()).To(MatchError(cmsgerr.New(cmsgerr.LostConnection)))
	})
})
