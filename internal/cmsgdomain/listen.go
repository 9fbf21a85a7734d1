package cmsgdomain

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"

	"github.com/JeffersonLab/cmsg-go/internal/monitor"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
)

// acceptLoop is the listening thread of spec §4.4.2. The server connects
// back to this socket to deliver shutdown requests and (for some
// deployments) subscribe/get responses; every accepted connection is
// dispatched through the same frame handler as the client-initiated
// receive socket.
func (c *Connection) acceptLoop(ready chan<- struct{}) {
	close(ready)
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if c.killReceiver.Load() {
				return
			}
			c.log.WithError(err).Debug("listening thread accept failed")
			return
		}
		go c.receiveLoop(conn, false)
	}
}

// receiveLoop reads frames from one connection (either the dedicated
// receive socket dialed at connect time, or a connection accepted by the
// listening thread) and dispatches each by message id (spec §4.4.2).
// isReceiveSocket marks the dedicated receive socket: only it ever carries
// a syncSend's raw positional reply (spec §4.4.5, §5), so only it checks
// syncReplyCh before assuming the next bytes are a framed message.
func (c *Connection) receiveLoop(conn net.Conn, isReceiveSocket bool) {
	r := bufio.NewReader(conn)
	for {
		if isReceiveSocket {
			c.syncReplyMu.Lock()
			replyCh := c.syncReplyCh
			c.syncReplyMu.Unlock()
			if replyCh != nil {
				var buf [4]byte
				if _, err := io.ReadFull(r, buf[:]); err != nil {
					if !c.killReceiver.Load() {
						go c.onConnectionLost()
					}
					return
				}
				select {
				case replyCh <- int32(binary.BigEndian.Uint32(buf[:])):
				default:
				}
				continue
			}
		}
		id, body, err := wire.ReadFrame(r)
		if err != nil {
			if err != io.EOF {
				c.log.WithError(err).Debug("receive loop: frame read failed")
			}
			if !c.killReceiver.Load() {
				go c.onConnectionLost()
			}
			return
		}
		c.dispatchFrame(conn, id, body)
	}
}

func (c *Connection) dispatchFrame(conn net.Conn, id wire.MessageID, body []byte) {
	switch id {
	case wire.SubscribeResponse:
		c.handleSubscribeResponse(body)
	case wire.GetResponse, wire.ServerGetResponse:
		c.handleGetResponse(body)
	case wire.KeepAlive:
		// A server-initiated keep-alive inquiry: answer with a monitoring
		// report on the same connection it arrived on (spec §4.4.2).
		c.respondToKeepAlive(conn)
	case wire.ShutdownClients:
		c.runShutdownHandler()
	case wire.ShutdownServers:
		// Servers shut themselves down; the client side has nothing to do
		// beyond logging, since the connection will drop on its own.
		c.log.Info("server reported shutdown-servers")
	case wire.RCConnect, wire.RCConnectAbort:
		// A second rc-connect on an already-open connection is the RC
		// domain's reconnect signal; only rcdomain installs this hook.
		c.rcConnectMu.Lock()
		hook := c.onRCConnect
		c.rcConnectMu.Unlock()
		if hook != nil {
			hook(id, body)
		}
	default:
		c.log.WithField("id", id).Debug("receive loop: unhandled message id")
	}
}

// respondToKeepAlive builds the current monitoring report and writes it
// back as a keep-alive reply frame (spec §4.4.2: the server's own
// keep-alive inquiry expects the same monitorData document the client's
// on-demand Monitor call returns).
func (c *Connection) respondToKeepAlive(conn net.Conn) {
	report := c.counters.Snapshot(c.subscriptionStats())
	body, err := monitor.MarshalXML(report)
	if err != nil {
		c.log.WithError(err).Debug("failed to marshal monitoring report for keep-alive reply")
		return
	}
	c.sockMu.Lock()
	defer c.sockMu.Unlock()
	if err := wire.WriteFrame(conn, wire.KeepAlive, body); err != nil {
		c.log.WithError(err).Debug("failed to write keep-alive reply")
	}
}

func (c *Connection) runShutdownHandler() {
	c.shutdownMu.Lock()
	fn, arg := c.shutdownHandler, c.shutdownArg
	c.shutdownMu.Unlock()
	if fn != nil {
		fn(arg)
	}
}
