// Package domain defines the capability-vector abstraction every cMsg
// domain plug-in (cMsg, RC, and dynamically loaded others) implements,
// and the process-wide registry that resolves a locator's domain name to
// one (spec §4.2, design note §9: a capability vector of concrete structs,
// not a vtable of interfaces-within-interfaces).
package domain

import (
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/monitor"
)

// Variant distinguishes the built-in domains (cMsg, RC, File) from a
// dynamically loaded one (spec §4.2: "permanent domains cmsg, rc, and file").
type Variant int

const (
	CMsg Variant = iota
	RC
	File
	Dynamic
)

// Callback is invoked once per delivered message on a per-subscription
// worker goroutine (spec §4.4.4).
type Callback func(msg *message.Message, userArg any)

// ShutdownHandler runs when a shutdown-clients request arrives, or when a
// connection is lost and failover finds no server. A shutdown-servers
// frame does not run it, and no default handler is installed.
type ShutdownHandler func(userArg any)

// SubscriptionID identifies an active subscribe call for Unsubscribe.
type SubscriptionID uint64

// SubscribeOptions carries the per-subscription queue-depth, backpressure,
// and worker-scaling knobs (spec §4.4.4).
type SubscribeOptions struct {
	QueueDepth int  // bounded FIFO capacity for this callback record
	SkipOnFull bool // true: drop oldest messages instead of blocking the dispatcher
	SkipSize   int  // batch size dropped at a time when the skip policy fires

	Serialize         bool // true: never spawn supplemental workers past the primary
	MaxThreads        int  // cap on primary + supplemental workers
	MessagesPerThread int  // scale-up watermark: queueDepth > MessagesPerThread*threads

	UserArg any
}

// Handle is the opaque per-connection state a domain plug-in returns from
// Connect. The multiplexer (pkg/cmsg) only needs to know whether it is
// still connected; every other operation re-dispatches through the same
// Capability the Handle came from.
type Handle interface {
	Connected() bool
}

// Capability enumerates exactly the fifteen operations of spec §4.2.
type Capability interface {
	Connect(locatorList string, opts ConnectOptions) (Handle, error)
	Send(h Handle, msg *message.Message) error
	SyncSend(h Handle, msg *message.Message, timeout time.Duration) (int32, error)
	Flush(h Handle) error
	Subscribe(h Handle, subject, msgType string, cb Callback, opts SubscribeOptions) (SubscriptionID, error)
	Unsubscribe(h Handle, id SubscriptionID) error
	SubscribeAndGet(h Handle, subject, msgType string, timeout time.Duration) (*message.Message, error)
	SendAndGet(h Handle, msg *message.Message, timeout time.Duration) (*message.Message, error)
	Monitor(h Handle, timeout time.Duration) (*monitor.Report, error)
	Start(h Handle) error
	Stop(h Handle) error
	Disconnect(h Handle) error
	SetShutdownHandler(h Handle, fn ShutdownHandler, userArg any) error
	ShutdownClients(h Handle, includeMe bool) error
	ShutdownServers(h Handle) error
}

// ConnectOptions carries the caller-supplied identity fields that go into
// the server-connect handshake (spec §4.4.1 step 6) regardless of which
// domain plug-in handles them.
type ConnectOptions struct {
	Name        string
	Description string
	UDL         string // the full original locator, stored verbatim for reconnection and reporting
}
