package cmsgdomain

import (
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
)

func messageToPublished(msg *message.Message) wire.PublishedBody {
	return wire.PublishedBody{
		Version:          int32(msg.Version),
		UserInt:          msg.UserInt,
		SysMsgID:         int32(msg.SysMsgID),
		SenderToken:      int32(msg.SenderToken),
		Info:             msg.Info,
		SenderTimeMillis: msg.SenderTime.UnixMilli(),
		UserTimeMillis:   msg.UserTime.UnixMilli(),
		Subject:          msg.Subject,
		Type:             msg.Type,
		Creator:          msg.Creator,
		Text:             msg.Text,
		ByteArray:        msg.Byte.Slice(),
	}
}

// Send implements domain.Capability.Send (spec §4.4.5). When Send.Reliable
// is false it uses the UDP socket, and a message whose frame exceeds the
// datagram cap is rejected with LimitExceeded without writing anything.
// When Send.Reliable is true it uses the dedicated TCP send socket.
func (cap *Capability) Send(h domain.Handle, msg *message.Message) error {
	c, err := asConnection(h)
	if err != nil {
		return err
	}
	if !c.caps.HasSend {
		return cmsgerr.New(cmsgerr.NotImplemented)
	}
	if !message.ValidSubjectOrType(msg.Subject) || !message.ValidSubjectOrType(msg.Type) {
		return cmsgerr.New(cmsgerr.BadArgument)
	}
	msg.SetCreatorIfUnset(c.name)
	payload := wire.EncodePublished(messageToPublished(msg))

	if !msg.Send.Reliable && len(payload)+8 <= wire.MaxUDPFrameBytes {
		return c.sendRetrying(func() error {
			c.sockMu.Lock()
			defer c.sockMu.Unlock()
			if err := wire.WriteFrame(c.udpSend, wire.Send, payload); err != nil {
				return cmsgerr.Wrap(cmsgerr.NetworkError, err)
			}
			c.counters.UDPSends.Add(1)
			return nil
		})
	}
	if len(payload)+8 > wire.MaxUDPFrameBytes && !msg.Send.Reliable {
		return cmsgerr.New(cmsgerr.LimitExceeded)
	}
	return c.sendRetrying(func() error {
		c.sockMu.Lock()
		defer c.sockMu.Unlock()
		if err := wire.WriteFrame(c.tcpSend, wire.Send, payload); err != nil {
			return cmsgerr.Wrap(cmsgerr.NetworkError, err)
		}
		c.counters.TCPSends.Add(1)
		return nil
	})
}

// sendRetrying implements the one-failover-retry policy of spec §7:
// "Transient transport failures on send paths trigger one failover-retry
// attempt; on second failure the code is returned to the caller."
func (c *Connection) sendRetrying(attempt func() error) error {
	err := attempt()
	if err == nil {
		return nil
	}
	if cerr, ok := err.(*cmsgerr.Error); !ok || (cerr.Code() != cmsgerr.NetworkError && cerr.Code() != cmsgerr.SocketError) {
		return err
	}
	if failErr := c.runFailover(); failErr != nil {
		return failErr
	}
	return attempt()
}

// SyncSend implements domain.Capability.SyncSend. Unlike sendAndGet, its
// reply is not a framed, token-correlated message: the server writes back
// a single raw 32-bit status integer on the receive socket, correlated
// purely by position (spec §4.4.5, §5: "responses are correlated
// positionally on the receive socket rather than by token"). syncSendMu
// serializes one request/reply pair at a time; syncReplyCh is how the
// receive loop hands that raw value back here instead of dispatching it
// as a frame.
func (cap *Capability) SyncSend(h domain.Handle, msg *message.Message, timeout time.Duration) (int32, error) {
	c, err := asConnection(h)
	if err != nil {
		return 0, err
	}
	if !c.caps.HasSyncSend {
		return 0, cmsgerr.New(cmsgerr.NotImplemented)
	}
	msg.SetCreatorIfUnset(c.name)
	token := c.nextToken.Add(1)
	msg.SenderToken = int(token)
	msg.Info.IsRequest = true

	c.syncSendMu.Lock()
	defer c.syncSendMu.Unlock()

	replyCh := make(chan int32, 1)
	c.syncReplyMu.Lock()
	c.syncReplyCh = replyCh
	c.syncReplyMu.Unlock()
	defer func() {
		c.syncReplyMu.Lock()
		c.syncReplyCh = nil
		c.syncReplyMu.Unlock()
	}()

	payload := wire.EncodePublished(messageToPublished(msg))
	c.counters.SyncSends.Add(1)
	if err := c.sendRetrying(func() error {
		c.sockMu.Lock()
		defer c.sockMu.Unlock()
		if err := wire.WriteFrame(c.tcpSend, wire.SyncSend, payload); err != nil {
			return cmsgerr.Wrap(cmsgerr.NetworkError, err)
		}
		return nil
	}); err != nil {
		return 0, err
	}

	select {
	case status := <-replyCh:
		return status, nil
	case <-time.After(timeout):
		return 0, cmsgerr.New(cmsgerr.Timeout)
	}
}

// Flush is a no-op for this transport: every Send already writes
// directly to the socket rather than buffering, so there is nothing to
// flush. The capability-vector entry exists because the spec lists flush
// as one of the fifteen operations every domain must answer for.
func (cap *Capability) Flush(h domain.Handle) error {
	_, err := asConnection(h)
	return err
}

// handleGetResponse completes a pending sendAndGet keyed by the
// response's sender token. syncSend and subscribeAndGet are correlated
// differently (positionally and by subject/type match respectively) and
// never land here.
func (c *Connection) handleGetResponse(body []byte) {
	d, err := wire.DecodeDelivery(body)
	if err != nil {
		c.log.WithError(err).Debug("malformed get-response frame")
		return
	}
	token := int32(d.SenderToken)
	c.pendingMu.Lock()
	req, ok := c.pending[token]
	c.pendingMu.Unlock()
	if !ok {
		return
	}
	msg := deliveryToMessage(d)
	select {
	case req.reply <- replyOrErr{msg: &deliveredMessage{msg: msg}}:
	default:
	}
}
