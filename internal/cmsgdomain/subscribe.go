package cmsgdomain

import (
	"reflect"
	"sync/atomic"
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
)

const (
	defaultQueueDepth        = 1000
	defaultMaxThreads        = 1
	defaultMessagesPerThread = 1000
	defaultSkipSize          = 1

	supplementalIdleWait   = 200 * time.Millisecond
	supplementalIdleRounds = 10
)

// applySubscribeDefaults fills in the zero-valued knobs of opts the way
// the C client's cMsgSubscribe defaults them (spec §4.4.3/§4.4.4).
func applySubscribeDefaults(opts domain.SubscribeOptions) domain.SubscribeOptions {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = defaultQueueDepth
	}
	if opts.SkipSize <= 0 {
		opts.SkipSize = defaultSkipSize
	}
	if opts.MessagesPerThread <= 0 {
		opts.MessagesPerThread = defaultMessagesPerThread
	}
	if opts.Serialize {
		opts.MaxThreads = 1
	} else if opts.MaxThreads <= 0 {
		opts.MaxThreads = defaultMaxThreads
	}
	return opts
}

// sameCallback compares two callback values by function-pointer identity,
// the Go stand-in for the C API's function-pointer equality check: Go
// func values aren't comparable with ==.
func sameCallback(a, b domain.Callback) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// sameUserArg compares two caller-supplied arguments for the exact-
// duplicate-subscription test (spec §4.4.3 testable property 7). any may
// wrap an uncomparable dynamic type (slice, map, func); == on those
// panics at runtime, so the comparison is guarded and treated as "not
// equal" rather than crashing the dispatcher.
func sameUserArg(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}

// Subscribe registers a callback and tells the server to start routing
// matching messages (spec §4.4.3, §4.4.4). A second Subscribe on the same
// subject/type with a distinct callback or user-arg appends a new
// callback record to the existing table entry instead of being rejected;
// only the exact (subject, type, callback, arg) tuple collides.
func (cap *Capability) Subscribe(h domain.Handle, subject, msgType string, cb domain.Callback, opts domain.SubscribeOptions) (domain.SubscriptionID, error) {
	c, err := asConnection(h)
	if err != nil {
		return 0, err
	}
	if !c.caps.HasSubscribe {
		return 0, cmsgerr.New(cmsgerr.NotImplemented)
	}
	if !message.ValidSubjectOrType(subject) || !message.ValidSubjectOrType(msgType) {
		return 0, cmsgerr.New(cmsgerr.BadArgument)
	}
	opts = applySubscribeDefaults(opts)

	key := subKey(subject, msgType)
	c.subscribeMu.Lock()
	sub, exists := c.subsByKey[key]
	isNewEntry := !exists
	if !exists {
		sub = &subscription{subject: subject, msgType: msgType}
		c.subsByKey[key] = sub
	}
	c.subscribeMu.Unlock()

	sub.mu.Lock()
	for _, existing := range sub.callbacks {
		if sameCallback(existing.cb, cb) && sameUserArg(existing.opts.UserArg, opts.UserArg) {
			sub.mu.Unlock()
			if isNewEntry {
				c.subscribeMu.Lock()
				delete(c.subsByKey, key)
				c.subscribeMu.Unlock()
			}
			return 0, cmsgerr.New(cmsgerr.AlreadyExists)
		}
	}
	rec := &callbackRecord{
		id:    domain.SubscriptionID(c.registry.NextID()),
		cb:    cb,
		opts:  opts,
		sub:   sub,
		queue: make(chan *deliveredMessage, opts.QueueDepth),
		stop:  make(chan struct{}),
	}
	sub.callbacks = append(sub.callbacks, rec)
	sub.mu.Unlock()

	c.subscribeMu.Lock()
	c.cbByID[rec.id] = rec
	c.subscribeMu.Unlock()

	c.spawnWorker(rec)

	if isNewEntry {
		if err := c.sendSubscribeFrame(wire.Subscribe, subject, msgType); err != nil {
			c.subscribeMu.Lock()
			delete(c.subsByKey, key)
			delete(c.cbByID, rec.id)
			c.subscribeMu.Unlock()
			close(rec.stop)
			return 0, err
		}
	}
	c.counters.Subscribes.Add(1)
	return rec.id, nil
}

// Unsubscribe removes one callback record and tears down its worker
// pool. The server is only told to stop routing the subject/type pair
// once its last callback record is gone.
func (cap *Capability) Unsubscribe(h domain.Handle, id domain.SubscriptionID) error {
	c, err := asConnection(h)
	if err != nil {
		return err
	}
	if !c.caps.HasUnsubscribe {
		return cmsgerr.New(cmsgerr.NotImplemented)
	}
	c.subscribeMu.Lock()
	rec, ok := c.cbByID[id]
	if !ok {
		c.subscribeMu.Unlock()
		return cmsgerr.New(cmsgerr.BadArgument)
	}
	delete(c.cbByID, id)
	c.subscribeMu.Unlock()

	sub := rec.sub
	sub.mu.Lock()
	for i, r := range sub.callbacks {
		if r == rec {
			sub.callbacks = append(sub.callbacks[:i], sub.callbacks[i+1:]...)
			break
		}
	}
	remaining := len(sub.callbacks)
	sub.mu.Unlock()

	close(rec.stop)

	if remaining == 0 {
		c.subscribeMu.Lock()
		delete(c.subsByKey, subKey(sub.subject, sub.msgType))
		c.subscribeMu.Unlock()
		if err := c.sendSubscribeFrame(wire.Unsubscribe, sub.subject, sub.msgType); err != nil {
			return err
		}
	}
	c.counters.Unsubscribes.Add(1)
	return nil
}

func (c *Connection) sendSubscribeFrame(id wire.MessageID, subject, msgType string) error {
	payload := appendString(appendString(nil, subject), msgType)
	c.sockMu.Lock()
	defer c.sockMu.Unlock()
	if err := wire.WriteFrame(c.tcpSend, id, payload); err != nil {
		return cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	return nil
}

// spawnWorker starts the primary callback goroutine for a callback
// record. Supplemental workers are spawned by maybeScaleWorkers when the
// queue depth crosses the configured watermark, up to opts.MaxThreads
// (spec §4.4.4: "primary + supplemental worker scaling"). Unlike a
// supplemental worker, the primary never exits on idle.
func (c *Connection) spawnWorker(rec *callbackRecord) {
	rec.mu.Lock()
	rec.threads++
	rec.mu.Unlock()
	go c.runCallbackWorker(rec, true)
}

// runCallbackWorker drains rec.queue and invokes rec.cb until rec.stop
// closes. A supplemental (non-primary) worker additionally exits, and
// decrements rec.threads, after ten consecutive idle 200ms waits (spec
// §4.4.4: dynamic worker-pool scaling down once traffic subsides).
func (c *Connection) runCallbackWorker(rec *callbackRecord, primary bool) {
	idle := 0
	for {
		select {
		case <-rec.stop:
			return
		case dm, ok := <-rec.queue:
			if !ok {
				return
			}
			atomic.AddInt32(&rec.queueLen, -1)
			rec.received.Add(1)
			rec.cb(dm.msg, rec.opts.UserArg)
			idle = 0
		case <-time.After(supplementalIdleWait):
			if primary {
				continue
			}
			idle++
			if idle >= supplementalIdleRounds {
				rec.mu.Lock()
				rec.threads--
				rec.mu.Unlock()
				return
			}
		}
	}
}

// maybeScaleWorkers spawns one more worker when queueDepth exceeds
// MessagesPerThread*threads and the record hasn't yet reached
// MaxThreads (spec §4.4.4's scale-up rule). A Serialize record never
// grows past its primary worker.
func (c *Connection) maybeScaleWorkers(rec *callbackRecord) {
	if rec.opts.Serialize {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.threads >= rec.opts.MaxThreads {
		return
	}
	depth := int(atomic.LoadInt32(&rec.queueLen))
	if depth <= rec.opts.MessagesPerThread*rec.threads {
		return
	}
	rec.threads++
	go c.runCallbackWorker(rec, false)
}

// enqueueSkip implements the skip backpressure policy: when the queue is
// full it drops the oldest SkipSize buffered messages (not the incoming
// one) so the newest message always reaches the callback (spec §3,
// testable property 6).
func (c *Connection) enqueueSkip(rec *callbackRecord, dm *deliveredMessage) {
	for {
		select {
		case rec.queue <- dm:
			atomic.AddInt32(&rec.queueLen, 1)
			c.maybeScaleWorkers(rec)
			return
		default:
		}
		batch := rec.opts.SkipSize
		if batch <= 0 {
			batch = 1
		}
		for i := 0; i < batch; i++ {
			select {
			case <-rec.queue:
				atomic.AddInt32(&rec.queueLen, -1)
			default:
				i = batch
			}
		}
	}
}

// deliverToCallback deep-copies template independently for rec,
// populates its subscription context, and enqueues it under rec's
// backpressure policy (spec §4.4.4: one independent copy per callback,
// the subscription context "populated... before invocation").
func (c *Connection) deliverToCallback(rec *callbackRecord, template *message.Message) {
	cp := template.DeepCopy()
	cp.Subscription = message.SubscriptionContext{
		Domain:     cp.Domain,
		Subject:    rec.sub.subject,
		Type:       rec.sub.msgType,
		Locator:    c.originalUDL,
		QueueDepth: &rec.queueLen,
	}
	dm := &deliveredMessage{msg: cp}

	if rec.opts.SkipOnFull {
		c.enqueueSkip(rec, dm)
		return
	}
	select {
	case rec.queue <- dm:
		atomic.AddInt32(&rec.queueLen, 1)
		c.maybeScaleWorkers(rec)
	case <-rec.stop:
		// unsubscribed while this producer was blocked: drop and move on
	case <-c.killDispatch:
		// connection torn down while this producer was blocked
	}
}

// handleSubscribeResponse first wakes any matching subscribeAndGet
// waiter (spec §4.4.4 step 1), then fans the delivery out to every
// matching subscription's callback records.
func (c *Connection) handleSubscribeResponse(body []byte) {
	d, err := wire.DecodeDelivery(body)
	if err != nil {
		c.log.WithError(err).Debug("malformed subscribe-response frame")
		return
	}
	template := deliveryToMessage(d)

	c.wakeMatchingSubAndGet(d.Subject, d.Type, template)

	if c.killReceiver.Load() {
		return
	}

	c.subscribeMu.RLock()
	matched := make([]*subscription, 0, len(c.subsByKey))
	for _, sub := range c.subsByKey {
		if subjectMatches(sub.subject, d.Subject) && subjectMatches(sub.msgType, d.Type) {
			matched = append(matched, sub)
		}
	}
	c.subscribeMu.RUnlock()

	for _, sub := range matched {
		sub.mu.Lock()
		records := append([]*callbackRecord(nil), sub.callbacks...)
		sub.mu.Unlock()
		for _, rec := range records {
			c.deliverToCallback(rec, template)
		}
	}
}

func deliveryToMessage(d wire.DeliveryBody) *message.Message {
	return &message.Message{
		Version:      int(d.Version),
		UserInt:      d.UserInt,
		SysMsgID:     int(d.SysMsgID),
		SenderToken:  int(d.SenderToken),
		Info:         d.Info,
		Domain:       d.Domain,
		Subject:      d.Subject,
		Type:         d.Type,
		Creator:      d.Creator,
		Sender:       d.Sender,
		SenderHost:   d.SenderHost,
		Receiver:     d.Receiver,
		ReceiverHost: d.ReceiverHost,
		SenderTime:   time.UnixMilli(d.SenderTimeMillis),
		UserTime:     time.UnixMilli(d.UserTimeMillis),
		Text:         d.Text,
		Byte:         message.ByteArray{Bytes: d.ByteArray, Length: len(d.ByteArray), Owned: true},
	}
}

// subjectMatches is the cMsg subscription wildcard match: '*' stands for
// any run of characters, '?' for exactly one (spec §3's subscription
// context refers to this as the stored subject/type pattern).
func subjectMatches(pattern, value string) bool {
	return wildcardMatch(pattern, value)
}

func wildcardMatch(pattern, value string) bool {
	return wildcardMatchRunes([]rune(pattern), []rune(value))
}

func wildcardMatchRunes(p, v []rune) bool {
	if len(p) == 0 {
		return len(v) == 0
	}
	switch p[0] {
	case '*':
		for i := 0; i <= len(v); i++ {
			if wildcardMatchRunes(p[1:], v[i:]) {
				return true
			}
		}
		return false
	case '?':
		if len(v) == 0 {
			return false
		}
		return wildcardMatchRunes(p[1:], v[1:])
	default:
		if len(v) == 0 || v[0] != p[0] {
			return false
		}
		return wildcardMatchRunes(p[1:], v[1:])
	}
}

func asConnection(h domain.Handle) (*Connection, error) {
	if h == nil {
		return nil, cmsgerr.New(cmsgerr.BadArgument)
	}
	c, ok := h.(*Connection)
	if !ok || !c.Connected() {
		return nil, cmsgerr.New(cmsgerr.LostConnection)
	}
	return c, nil
}
