// Package cmsgdomain implements the cMsg domain client: connect,
// subscribe/send/get dispatch, keep-alive failure detection, and
// failover across an ordered locator list (spec §4.4).
package cmsgdomain

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/locator"
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/monitor"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// subscription is one subject/type table entry: the compiled pattern plus
// every callback record registered against it (spec §4.4.3: "appends a
// callback record" to an existing entry rather than rejecting a second
// subscribe outright).
type subscription struct {
	subject string
	msgType string

	mu        sync.Mutex
	callbacks []*callbackRecord
}

// callbackRecord is one (callback, user-arg, config) registration: its
// bounded delivery queue and worker pool (spec §4.4.4).
type callbackRecord struct {
	id   domain.SubscriptionID
	cb   domain.Callback
	opts domain.SubscribeOptions
	sub  *subscription // the table entry this record belongs to

	mu       sync.Mutex
	queue    chan *deliveredMessage
	queueLen int32 // atomic; a live pointer is handed to each delivered message's subscription context
	threads  int
	received atomic.Int64
	stop     chan struct{}
}

// pendingRequest correlates a sendAndGet call with its eventual
// get-response, by sender token (spec §4.4.6: "per-entry mutexes and
// condition variables" become one reply channel each here).
type pendingRequest struct {
	reply chan replyOrErr
}

// subAndGetWaiter is a one-shot subscribeAndGet registration, woken by the
// dispatcher's pending-table check rather than an ordinary callback
// record (spec §4.4.4 step 1, §4.4.6).
type subAndGetWaiter struct {
	subject string
	msgType string
	reply   chan replyOrErr
}

type replyOrErr struct {
	msg *deliveredMessage
	err error
}

// Connection is the per-connect state of spec §4: "sockets..., remote
// addresses and ports, the client's listening port, a description and
// name, the original locator, a failover list..., a resubscribe-complete
// flag, a kill-receiver flag, a count-down latch..., a monitoring counter
// block, a shutdown handler + user argument, a reusable send buffer, and
// a set of mutexes."
type Connection struct {
	connMu sync.RWMutex // held exclusively by failover and Disconnect; ordinary operations do not take it
	connected atomic.Bool

	name        string
	description string
	originalUDL string

	failoverListMu sync.Mutex // guards failoverList/failoverIndex only
	failoverList   []locator.Parsed
	failoverIndex  int

	// failoverRunMu and failoverLimiter bound and serialize failover
	// attempts on THIS connection alone: spec §1 allows a process to hold
	// several simultaneous domain connections, so one connection's
	// failover must never share a gate with another's.
	failoverRunMu   sync.Mutex
	failoverLimiter *rate.Limiter

	caps serverCapabilities // the server's advertised capability mask (spec §4.4.1 step 7)

	promExporter *monitor.PrometheusExporter

	hostName   string
	listenPort int
	listener   net.Listener

	serverHost     string
	serverTCPPort  int
	serverUDPPort  int
	nameServerHost string
	nameServerPort int

	sockMu      sync.Mutex
	sendBuf     []byte // 15 KB reusable buffer, spec §4.4.1 step 1
	tcpSend     net.Conn
	tcpReceive  net.Conn
	tcpKeepAlive net.Conn
	udpSend     net.Conn

	syncSendMu sync.Mutex // serializes request/reply pairs on the shared receive socket

	// syncReplyMu/syncReplyCh hand a raw positional reply off from the
	// receive loop to whichever syncSend call is currently waiting: the
	// reply is an unframed 32-bit status int with no token of its own
	// (spec §4.4.5, §5), so it can't go through the pending/token table.
	syncReplyMu sync.Mutex
	syncReplyCh chan int32

	subscribeMu sync.RWMutex
	subsByKey   map[string]*subscription
	cbByID      map[domain.SubscriptionID]*callbackRecord

	pendingMu sync.Mutex
	pending   map[int32]*pendingRequest
	nextToken atomic.Int32

	subAndGetMu     sync.Mutex
	subAndGet       map[uint64]*subAndGetWaiter
	nextSubAndGetID atomic.Uint64

	resubscribeComplete atomic.Bool
	killReceiver        atomic.Bool
	killDispatchOnce    sync.Once
	killDispatch        chan struct{} // closed to abort producers blocked on a full, non-skip queue

	counters monitor.Counters

	shutdownMu      sync.Mutex
	shutdownHandler domain.ShutdownHandler
	shutdownArg     any

	registry *domain.Registry
	log      *logrus.Entry

	rcConnectMu sync.Mutex
	onRCConnect func(id wire.MessageID, body []byte)
}

// Connected reports whether the connection is live, satisfying
// domain.Handle so the multiplexer can short-circuit on a cleared flag
// without knowing the cMsg domain's internals (spec §4.3).
func (c *Connection) Connected() bool { return c.connected.Load() }

func subKey(subject, msgType string) string { return subject + "\x00" + msgType }

func newConnection(reg *domain.Registry, log *logrus.Entry) *Connection {
	return &Connection{
		sendBuf:      make([]byte, 15*1024),
		subsByKey:    make(map[string]*subscription),
		cbByID:       make(map[domain.SubscriptionID]*callbackRecord),
		pending:      make(map[int32]*pendingRequest),
		subAndGet:    make(map[uint64]*subAndGetWaiter),
		killDispatch: make(chan struct{}),
		registry:     reg,
		log:          log,
		// Optimistic default: a connection that never negotiates a
		// capability mask (the RC domain's handshake has none) gets every
		// operation enabled. The cMsg domain's own connect sequence
		// narrows this to the server's actual advertised mask.
		caps: serverCapabilities{
			HasSend: true, HasSyncSend: true, HasSubscribeAndGet: true,
			HasSendAndGet: true, HasSubscribe: true, HasUnsubscribe: true,
			HasShutdown: true,
		},
		failoverLimiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
}

// closeKillDispatch releases any producer currently blocked handing a
// message to a full, non-skip-policy queue (spec §4.4.7: "unblock
// writers" during teardown). Safe to call more than once.
func (c *Connection) closeKillDispatch() {
	c.killDispatchOnce.Do(func() { close(c.killDispatch) })
}

// deliveredMessage is the internal queued unit: the payload plus the
// subscription context the dispatcher already resolved (spec §3: "a
// subscription context (domain, subject, type, locator, queue-depth...)"
// travels with every delivered message).
type deliveredMessage struct {
	msg *message.Message
}
