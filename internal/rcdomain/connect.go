package rcdomain

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgdomain"
	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/locator"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
	"github.com/sirupsen/logrus"
)

const (
	listenPortEnv     = "CMSG_RC_CLIENT_PORT"
	defaultListenPort = 6543
	maxListenTries    = 500
	expidEnv          = "EXPID"
)

// Capability is the RC domain's registry entry. It embeds a bare cMsg
// capability to reuse its subscription table and dispatcher verbatim
// once the RC-specific handshake has populated a Connection's sockets
// (spec §4.5).
type Capability struct {
	registry *domain.Registry
	log      *logrus.Entry
	cmsgCap  *cmsgdomain.Capability
}

// New constructs the RC domain capability vector and registers it.
func New(reg *domain.Registry, log *logrus.Entry) *Capability {
	c := &Capability{registry: reg, log: log, cmsgCap: cmsgdomain.NewBare(reg, log)}
	reg.Register("rc", c)
	return c
}

var _ domain.Capability = (*Capability)(nil)

func (cap *Capability) Connect(locatorList string, opts domain.ConnectOptions) (domain.Handle, error) {
	entries, err := locator.ParseList(locatorList)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 || entries[0].Domain != "rc" {
		return nil, cmsgerr.New(cmsgerr.BadDomainType)
	}
	rc, err := locator.ParseRC(entries[0].Remainder)
	if err != nil {
		return nil, err
	}
	expid := rc.ExpID
	if expid == "" {
		expid = os.Getenv(expidEnv)
	}
	if expid == "" {
		return nil, cmsgerr.New(cmsgerr.BadArgument)
	}
	broadcastTO := time.Duration(rc.BroadcastTO) * time.Second
	if broadcastTO <= 0 {
		broadcastTO = 5 * time.Second
	}
	connectTO := time.Duration(rc.ConnectTO) * time.Second
	if connectTO <= 0 {
		connectTO = 10 * time.Second
	}

	ln, listenPort, err := bindListener()
	if err != nil {
		return nil, err
	}

	conn := cmsgdomain.NewConnection(cap.registry, cap.log.WithField("client", opts.Name))
	hostName, _ := os.Hostname()
	conn.SetHostName(hostName)

	reply, err := discover(listenPort, opts.Name, expid, broadcastTO)
	if err != nil {
		ln.Close()
		return nil, err
	}

	serverTCP, err := acceptHandshake(ln, connectTO)
	if err != nil {
		return nil, err
	}

	udpPort, tcpPort, senderHost, err := readRCConnect(serverTCP)
	if err != nil {
		serverTCP.Close()
		return nil, err
	}

	udpConn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP(senderHost), Port: udpPort})
	if err != nil {
		serverTCP.Close()
		return nil, cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}

	conn.AttachSockets(serverTCP, serverTCP, serverTCP, udpConn)
	conn.SetServerAddress(senderHost, tcpPort, udpPort)
	conn.SetConnected(true)
	cap.installReconnectHook(conn, senderHost)
	conn.BeginReceiving()

	_ = reply // the server address comes from the rc-connect message; reply.ServerHost/ServerPort are not used
	return conn, nil
}

func bindListener() (net.Listener, int, error) {
	start := defaultListenPort
	if v := os.Getenv(listenPortEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	for i := 0; i < maxListenTries; i++ {
		port := start + i
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, cmsgerr.New(cmsgerr.SocketError)
}

// acceptHandshake waits for the RC server to open its TCP connection to
// the client's listening port (spec §4.5).
func acceptHandshake(ln net.Listener, timeout time.Duration) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		ln.Close()
		if r.err != nil {
			return nil, cmsgerr.Wrap(cmsgerr.NetworkError, r.err)
		}
		return r.conn, nil
	case <-time.After(timeout):
		ln.Close()
		return nil, cmsgerr.New(cmsgerr.Timeout)
	}
}

// readRCConnect reads the rc-connect/rc-connect-abort frame the server
// sends immediately after opening its TCP connection (spec §4.5: text
// field "<udp-port>:<tcp-port>", sender-host identifies the server).
func readRCConnect(conn net.Conn) (udpPort, tcpPort int, senderHost string, err error) {
	r := bufio.NewReader(conn)
	id, body, err := wire.ReadFrame(r)
	if err != nil {
		return 0, 0, "", cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	if id == wire.RCConnectAbort {
		return 0, 0, "", cmsgerr.New(cmsgerr.Abort)
	}
	if id != wire.RCConnect {
		return 0, 0, "", cmsgerr.New(cmsgerr.BadMessage)
	}
	d, err := wire.DecodeDelivery(body)
	if err != nil {
		return 0, 0, "", err
	}
	return splitUDPTCP(d.Text, d.SenderHost)
}

// splitUDPTCP parses the rc-connect text field "<udp-port>:<tcp-port>"
// (spec §4.5), shared by the initial handshake and the reconnect path.
func splitUDPTCP(text, senderHost string) (udpPort, tcpPort int, host string, err error) {
	parts := strings.SplitN(text, ":", 2)
	if len(parts) != 2 {
		return 0, 0, "", cmsgerr.New(cmsgerr.BadFormat)
	}
	u, err1 := strconv.Atoi(parts[0])
	t, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, "", cmsgerr.New(cmsgerr.BadFormat)
	}
	return u, t, senderHost, nil
}
