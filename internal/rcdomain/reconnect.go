package rcdomain

import (
	"net"
	"strconv"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgdomain"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
)

// installReconnectHook wires the cMsg dispatcher's generic rc-connect
// notification to the RC-specific reconnect path: a second rc-connect on
// the already-open connection means the RC server died and came back, so
// the UDP and TCP send sockets are replaced while subscriptions and
// their worker pools are left untouched (spec §4.5).
func (cap *Capability) installReconnectHook(conn *cmsgdomain.Connection, remoteHost string) {
	conn.SetRCConnectHook(func(id wire.MessageID, body []byte) {
		if id == wire.RCConnectAbort {
			cap.log.Warn("RC server sent rc-connect-abort on an active connection")
			return
		}
		d, err := wire.DecodeDelivery(body)
		if err != nil {
			cap.log.WithError(err).Debug("malformed rc-connect during reconnect")
			return
		}
		udpPort, tcpPort, senderHost, err := splitUDPTCP(d.Text, d.SenderHost)
		if err != nil {
			cap.log.WithError(err).Debug("malformed rc-connect text field")
			return
		}

		udpConn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP(senderHost), Port: udpPort})
		if err != nil {
			cap.log.WithError(err).Warn("RC reconnect: failed to redial UDP send socket")
			return
		}
		tcpConn, err := net.Dial("tcp", net.JoinHostPort(senderHost, strconv.Itoa(tcpPort)))
		if err != nil {
			cap.log.WithError(err).Warn("RC reconnect: failed to redial TCP send socket")
			_ = udpConn.Close()
			return
		}

		conn.SetUDPSocket(udpConn)
		conn.SetTCPSendSocket(tcpConn)
		conn.SetServerAddress(senderHost, tcpPort, udpPort)
		conn.SetConnected(true)
		cap.log.WithField("host", senderHost).Info("RC domain reconnected to new server")
	})
}
