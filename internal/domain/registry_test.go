package domain_test

import (
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/monitor"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// stubCapability is a minimal Capability used only to exercise Registry.
type stubCapability struct{ connects int }

func (s *stubCapability) Connect(string, domain.ConnectOptions) (domain.Handle, error) {
	s.connects++
	return stubHandle{}, nil
}
func (s *stubCapability) Send(domain.Handle, *message.Message) error { return nil }
func (s *stubCapability) SyncSend(domain.Handle, *message.Message, time.Duration) (int32, error) {
	return 0, nil
}
func (s *stubCapability) Flush(domain.Handle) error { return nil }
func (s *stubCapability) Subscribe(domain.Handle, string, string, domain.Callback, domain.SubscribeOptions) (domain.SubscriptionID, error) {
	return 0, nil
}
func (s *stubCapability) Unsubscribe(domain.Handle, domain.SubscriptionID) error { return nil }
func (s *stubCapability) SubscribeAndGet(domain.Handle, string, string, time.Duration) (*message.Message, error) {
	return nil, nil
}
func (s *stubCapability) SendAndGet(domain.Handle, *message.Message, time.Duration) (*message.Message, error) {
	return nil, nil
}
func (s *stubCapability) Monitor(domain.Handle, time.Duration) (*monitor.Report, error) {
	return nil, nil
}
func (s *stubCapability) Start(domain.Handle) error                                  { return nil }
func (s *stubCapability) Stop(domain.Handle) error                                   { return nil }
func (s *stubCapability) Disconnect(domain.Handle) error                             { return nil }
func (s *stubCapability) SetShutdownHandler(domain.Handle, domain.ShutdownHandler, any) error {
	return nil
}
func (s *stubCapability) ShutdownClients(domain.Handle, bool) error { return nil }
func (s *stubCapability) ShutdownServers(domain.Handle) error       { return nil }

type stubHandle struct{}

func (stubHandle) Connected() bool { return true }

var _ = Describe("Registry", func() {
	It("returns a registered capability without invoking the loader", func() {
		r := domain.NewRegistry()
		cap := &stubCapability{}
		r.Register("cmsg", cap)

		got, err := r.Lookup("cmsg", func(string) (domain.Capability, error) {
			Fail("loader should not be invoked for an already-registered domain")
			return nil, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeIdenticalTo(cap))
	})

	It("invokes the loader exactly once for an unregistered domain", func() {
		r := domain.NewRegistry()
		cap := &stubCapability{}
		calls := 0
		loader := func(name string) (domain.Capability, error) {
			calls++
			Expect(name).To(Equal("mydomain"))
			return cap, nil
		}

		_, err := r.Lookup("mydomain", loader)
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Lookup("mydomain", loader)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("fails with NoClassFound when no loader is configured", func() {
		r := domain.NewRegistry()
		_, err := r.Lookup("unknown", nil)
		Expect(err).To(HaveOccurred())
		Expect(err).To(MatchError(cmsgerr.New(cmsgerr.NoClassFound)))
	})

	It("hands out strictly increasing unique ids", func() {
		r := domain.NewRegistry()
		a, b := r.NextID(), r.NextID()
		Expect(b).To(Equal(a + 1))
	})
})
