package cmsgdomain

import (
	"net"

	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
	"github.com/sirupsen/logrus"
)

// NewBare returns a cMsg-domain Capability that is not registered in any
// registry. The RC domain embeds it to reuse the cMsg domain's
// subscription data structures and dispatcher "verbatim" (spec §4.5)
// after performing its own, unrelated discovery-and-handshake connect.
func NewBare(reg *domain.Registry, log *logrus.Entry) *Capability {
	return &Capability{registry: reg, log: log}
}

// NewConnection builds a bare Connection for a caller (the RC domain)
// that will populate its sockets itself instead of going through
// Capability.Connect.
func NewConnection(reg *domain.Registry, log *logrus.Entry) *Connection {
	return newConnection(reg, log)
}

// AttachSockets installs the four sockets a non-cMsg discovery handshake
// opened, so the embedded cMsg dispatcher can send and receive over them
// exactly as if its own Connect had dialed them.
func (c *Connection) AttachSockets(tcpSend, tcpReceive, tcpKeepAlive net.Conn, udpSend net.Conn) {
	c.sockMu.Lock()
	c.tcpSend, c.tcpReceive, c.tcpKeepAlive, c.udpSend = tcpSend, tcpReceive, tcpKeepAlive, udpSend
	c.sockMu.Unlock()
}

// SetUDPSocket replaces the UDP send socket alone, closing the previous
// one first. Used by the RC domain's reconnect path, which keeps the
// already-open TCP connection the new rc-connect arrived on.
func (c *Connection) SetUDPSocket(udpSend net.Conn) {
	c.sockMu.Lock()
	if c.udpSend != nil {
		_ = c.udpSend.Close()
	}
	c.udpSend = udpSend
	c.sockMu.Unlock()
}

// SetTCPSendSocket replaces the TCP send socket alone, closing the
// previous one first, while leaving the receive socket (the connection the
// new rc-connect arrived on) untouched. Used by the RC domain's reconnect
// path (spec §4.5: "closes and reopens the UDP and TCP send sockets to the
// new address while leaving subscriptions intact").
func (c *Connection) SetTCPSendSocket(tcpSend net.Conn) {
	c.sockMu.Lock()
	if c.tcpSend != nil && c.tcpSend != c.tcpReceive {
		_ = c.tcpSend.Close()
	}
	c.tcpSend = tcpSend
	c.sockMu.Unlock()
}

// SetServerAddress records the remote host/ports for logging and for a
// future reconnect.
func (c *Connection) SetServerAddress(host string, tcpPort, udpPort int) {
	c.serverHost, c.serverTCPPort, c.serverUDPPort = host, tcpPort, udpPort
}

// SetHostName records this process's resolved host name.
func (c *Connection) SetHostName(h string) { c.hostName = h }

// SetConnected flips the connected flag a caller-driven handshake uses
// instead of Capability.Connect's own bookkeeping.
func (c *Connection) SetConnected(v bool) { c.connected.Store(v) }

// BeginReceiving starts the shared receive loop against the attached
// receive socket.
func (c *Connection) BeginReceiving() {
	go c.receiveLoop(c.tcpReceive, true)
}

// CloseSockets is exported so a caller-driven reconnect (RC domain) can
// tear down the previous address's sockets before attaching new ones.
func (c *Connection) CloseSockets() { c.closeSockets() }

// SetRCConnectHook installs the callback invoked when an rc-connect or
// rc-connect-abort frame arrives on an already-open connection (spec
// §4.5's reconnect path). Only the RC domain uses this.
func (c *Connection) SetRCConnectHook(fn func(id wire.MessageID, body []byte)) {
	c.rcConnectMu.Lock()
	c.onRCConnect = fn
	c.rcConnectMu.Unlock()
}
