package cmsgdomain

import (
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
)

// SendAndGet sends a request message and blocks for its single matching
// response, sending an un-send-and-get "forget" frame on timeout so the
// server stops tracking the request (spec §4.4.6).
func (cap *Capability) SendAndGet(h domain.Handle, msg *message.Message, timeout time.Duration) (*message.Message, error) {
	c, err := asConnection(h)
	if err != nil {
		return nil, err
	}
	if !c.caps.HasSendAndGet {
		return nil, cmsgerr.New(cmsgerr.NotImplemented)
	}
	msg.SetCreatorIfUnset(c.name)
	token := c.nextToken.Add(1)
	msg.SenderToken = int(token)
	msg.Info.IsRequest = true

	req := &pendingRequest{reply: make(chan replyOrErr, 1)}
	c.pendingMu.Lock()
	c.pending[token] = req
	c.counters.PendingSendAndGets.Add(1)
	c.pendingMu.Unlock()
	defer c.counters.PendingSendAndGets.Add(-1)

	payload := wire.EncodePublished(messageToPublished(msg))
	c.counters.SendAndGets.Add(1)
	if err := c.sendRetrying(func() error {
		c.sockMu.Lock()
		defer c.sockMu.Unlock()
		if err := wire.WriteFrame(c.tcpSend, wire.SendAndGet, payload); err != nil {
			return cmsgerr.Wrap(cmsgerr.NetworkError, err)
		}
		return nil
	}); err != nil {
		c.forgetPending(token, wire.UnSendAndGet)
		return nil, err
	}

	select {
	case r := <-req.reply:
		c.clearPending(token)
		if r.err != nil {
			return nil, r.err
		}
		return r.msg.msg, nil
	case <-time.After(timeout):
		c.forgetPending(token, wire.UnSendAndGet)
		return nil, cmsgerr.New(cmsgerr.Timeout)
	}
}

// SubscribeAndGet registers a one-shot waiter for the next message
// matching subject/type. It is woken directly by handleSubscribeResponse
// checking the subscribeAndGet table against every inbound
// subscribe-response (spec §4.4.4 step 1, §4.4.6) — it never calls back
// through the ordinary subscribe worker pool, and it does not share
// sendAndGet's token-keyed get-response table.
func (cap *Capability) SubscribeAndGet(h domain.Handle, subject, msgType string, timeout time.Duration) (*message.Message, error) {
	c, err := asConnection(h)
	if err != nil {
		return nil, err
	}
	if !c.caps.HasSubscribeAndGet {
		return nil, cmsgerr.New(cmsgerr.NotImplemented)
	}
	if !message.ValidSubjectOrType(subject) || !message.ValidSubjectOrType(msgType) {
		return nil, cmsgerr.New(cmsgerr.BadArgument)
	}

	id := c.nextSubAndGetID.Add(1)
	waiter := &subAndGetWaiter{subject: subject, msgType: msgType, reply: make(chan replyOrErr, 1)}

	c.subAndGetMu.Lock()
	c.subAndGet[id] = waiter
	c.counters.PendingSubscribeAndGets.Add(1)
	c.subAndGetMu.Unlock()
	defer c.counters.PendingSubscribeAndGets.Add(-1)

	payload := appendString(appendString(nil, subject), msgType)
	c.counters.SubscribeAndGets.Add(1)
	if err := c.sendRetrying(func() error {
		c.sockMu.Lock()
		defer c.sockMu.Unlock()
		if err := wire.WriteFrame(c.tcpSend, wire.SubscribeAndGet, payload); err != nil {
			return cmsgerr.Wrap(cmsgerr.NetworkError, err)
		}
		return nil
	}); err != nil {
		c.forgetSubAndGet(id, waiter)
		return nil, err
	}

	select {
	case r := <-waiter.reply:
		if r.err != nil {
			return nil, r.err
		}
		return r.msg.msg, nil
	case <-time.After(timeout):
		c.forgetSubAndGet(id, waiter)
		return nil, cmsgerr.New(cmsgerr.Timeout)
	}
}

// wakeMatchingSubAndGet delivers an independent deep copy of template to
// every pending subscribeAndGet waiter whose subject/type pattern
// matches, removing each from the table (spec §4.4.4 step 1: "multiple
// entries may match, each gets independent copy").
func (c *Connection) wakeMatchingSubAndGet(subject, msgType string, template *message.Message) {
	c.subAndGetMu.Lock()
	var matched []*subAndGetWaiter
	for id, w := range c.subAndGet {
		if subjectMatches(w.subject, subject) && subjectMatches(w.msgType, msgType) {
			matched = append(matched, w)
			delete(c.subAndGet, id)
		}
	}
	c.subAndGetMu.Unlock()

	for _, w := range matched {
		select {
		case w.reply <- replyOrErr{msg: &deliveredMessage{msg: template.DeepCopy()}}:
		default:
		}
	}
}

// forgetSubAndGet removes a timed-out or failed-send waiter and
// best-effort tells the server to stop tracking the request.
func (c *Connection) forgetSubAndGet(id uint64, w *subAndGetWaiter) {
	c.subAndGetMu.Lock()
	delete(c.subAndGet, id)
	c.subAndGetMu.Unlock()
	payload := appendString(appendString(nil, w.subject), w.msgType)
	c.sockMu.Lock()
	defer c.sockMu.Unlock()
	_ = wire.WriteFrame(c.tcpSend, wire.UnSubscribeAndGet, payload)
}

func (c *Connection) clearPending(token int32) {
	c.pendingMu.Lock()
	delete(c.pending, token)
	c.pendingMu.Unlock()
}

// forgetPending clears a timed-out pending entry and best-effort notifies
// the server with the matching "un-" frame so it stops holding state for
// a request nobody is waiting on anymore.
func (c *Connection) forgetPending(token int32, forgetID wire.MessageID) {
	c.clearPending(token)
	payload := appendUint32(nil, uint32(token))
	c.sockMu.Lock()
	defer c.sockMu.Unlock()
	_ = wire.WriteFrame(c.tcpSend, forgetID, payload)
}

// wakeAllPendingServerDied wakes every pending sendAndGet and
// subscribeAndGet waiter with a server-died error: neither can be
// resumed across a server identity change (spec §4.4.8 step 3, scenario
// S6). Called once per failover attempt, regardless of whether it
// eventually succeeds or exhausts the candidate list.
func (c *Connection) wakeAllPendingServerDied() {
	died := cmsgerr.New(cmsgerr.ServerDied)

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int32]*pendingRequest)
	c.pendingMu.Unlock()
	for _, req := range pending {
		select {
		case req.reply <- replyOrErr{err: died}:
		default:
		}
	}

	c.subAndGetMu.Lock()
	waiters := c.subAndGet
	c.subAndGet = make(map[uint64]*subAndGetWaiter)
	c.subAndGetMu.Unlock()
	for _, w := range waiters {
		select {
		case w.reply <- replyOrErr{err: died}:
		default:
		}
	}
}
