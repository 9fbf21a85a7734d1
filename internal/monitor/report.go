// Package monitor tracks the per-connection counters embedded in
// keep-alive responses and exposes them as both a small XML document and
// Prometheus metrics (spec §4.1, §4.4.7).
package monitor

import "sync/atomic"

// Counters holds the per-connection tallies spec §4.1 lists as the
// keep-alive monitoring report body. The two Pending fields count requests
// currently awaiting a reply; every other field only increases.
type Counters struct {
	TCPSends              atomic.Int64
	UDPSends              atomic.Int64
	SyncSends             atomic.Int64
	SubscribeAndGets       atomic.Int64
	SendAndGets            atomic.Int64
	Subscribes             atomic.Int64
	Unsubscribes           atomic.Int64
	PendingSubscribeAndGets atomic.Int64
	PendingSendAndGets      atomic.Int64
}

// CallbackStat describes one active subscription's callback for the
// monitoring report's enumerated subscription/callback list.
type CallbackStat struct {
	Subject  string
	Type     string
	Received int64
	Queued   int64
}

// Subscription groups the callbacks registered against one subject/type
// pattern, mirroring how the XML report nests them (spec §4.1).
type Subscription struct {
	Subject   string
	Type      string
	Callbacks []CallbackStat
}

// Report is a point-in-time snapshot: the scalar counters plus the
// enumerated subscription/callback list.
type Report struct {
	TCPSends                int64
	UDPSends                int64
	SyncSends               int64
	SubscribeAndGets        int64
	SendAndGets             int64
	Subscribes              int64
	Unsubscribes            int64
	PendingSubscribeAndGets int64
	PendingSendAndGets      int64
	Subscriptions           []Subscription
}

// Snapshot reads the live counters into a Report. subscriptions is
// supplied by the caller (internal/cmsgdomain holds the subscription
// table monitor doesn't know about).
func (c *Counters) Snapshot(subscriptions []Subscription) *Report {
	return &Report{
		TCPSends:                c.TCPSends.Load(),
		UDPSends:                c.UDPSends.Load(),
		SyncSends:               c.SyncSends.Load(),
		SubscribeAndGets:        c.SubscribeAndGets.Load(),
		SendAndGets:             c.SendAndGets.Load(),
		Subscribes:              c.Subscribes.Load(),
		Unsubscribes:            c.Unsubscribes.Load(),
		PendingSubscribeAndGets: c.PendingSubscribeAndGets.Load(),
		PendingSendAndGets:      c.PendingSendAndGets.Load(),
		Subscriptions:           subscriptions,
	}
}
