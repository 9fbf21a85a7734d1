package monitor_test

import (
	"github.com/JeffersonLab/cmsg-go/internal/monitor"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Counters", func() {
	It("snapshots the live atomic counters", func() {
		var c monitor.Counters
		c.TCPSends.Store(3)
		c.Subscribes.Store(2)
		c.PendingSendAndGets.Store(1)

		r := c.Snapshot(nil)
		Expect(r.TCPSends).To(Equal(int64(3)))
		Expect(r.Subscribes).To(Equal(int64(2)))
		Expect(r.PendingSendAndGets).To(Equal(int64(1)))
	})
})

var _ = Describe("XML monitoring report", func() {
	It("round-trips scalar counters and the subscription list", func() {
		r := &monitor.Report{
			TCPSends:   5,
			UDPSends:   2,
			Subscribes: 1,
			Subscriptions: []monitor.Subscription{
				{Subject: "SUBJECT", Type: "TYPE", Callbacks: []monitor.CallbackStat{
					{Received: 10, Queued: 3},
				}},
			},
		}

		data, err := monitor.MarshalXML(r)
		Expect(err).NotTo(HaveOccurred())

		out, err := monitor.UnmarshalXML(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.TCPSends).To(Equal(r.TCPSends))
		Expect(out.UDPSends).To(Equal(r.UDPSends))
		Expect(out.Subscriptions).To(HaveLen(1))
		Expect(out.Subscriptions[0].Subject).To(Equal("SUBJECT"))
		Expect(out.Subscriptions[0].Callbacks[0].Received).To(Equal(int64(10)))
		Expect(out.Subscriptions[0].Callbacks[0].Queued).To(Equal(int64(3)))
	})
})
