package cmsgdomain

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/locator"
	"github.com/JeffersonLab/cmsg-go/internal/monitor"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
	"github.com/hashicorp/go-version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultListenPortEnv = "CMSG_PORT"
	defaultListenPort    = 2345
	maxListenPortTries   = 500
	readyPollInterval    = 50 * time.Millisecond
	readyPollTimeout     = 10 * time.Second
)

// serverCapabilities is the seven-bit mask the name server returns on a
// successful connect (spec §4.4.1 step 7).
type serverCapabilities struct {
	HasSend            bool
	HasSyncSend        bool
	HasSubscribeAndGet bool
	HasSendAndGet      bool
	HasSubscribe       bool
	HasUnsubscribe     bool
	HasShutdown        bool
}

// Connect implements domain.Capability.Connect for the cMsg domain
// (spec §4.4.1).
func (cap *Capability) Connect(locatorList string, opts domain.ConnectOptions) (domain.Handle, error) {
	entries, err := locator.ParseList(locatorList)
	if err != nil {
		return nil, err
	}
	expanded, err := locator.ExpandList(entries, func(path string) (string, error) {
		b, err := os.ReadFile(path)
		return string(b), err
	})
	if err != nil {
		return nil, err
	}
	if len(expanded) == 0 || expanded[0].Domain != "cmsg" {
		return nil, cmsgerr.New(cmsgerr.BadDomainType)
	}

	c := newConnection(cap.registry, cap.log.WithField("client", opts.Name))
	c.name = opts.Name
	c.description = opts.Description
	c.originalUDL = opts.UDL
	c.failoverList = expanded

	var lastErr error
	for i, entry := range expanded {
		c.failoverIndex = i
		if err := c.connectTo(entry); err != nil {
			lastErr = err
			continue
		}
		c.connected.Store(true)
		go c.keepAliveLoop()
		return c, nil
	}
	if lastErr == nil {
		lastErr = cmsgerr.New(cmsgerr.NetworkError)
	}
	return nil, lastErr
}

// connectTo performs the connect sequence of spec §4.4.1, steps 3-9,
// against one parsed failover-list entry. On any failure past step (5) it
// tears down whatever it already opened in reverse order before returning
// (spec §4.4.1: "previously opened sockets and threads are torn down in
// reverse order").
func (c *Connection) connectTo(entry locator.Parsed) (err error) {
	parsed, err := locator.ParseCMsg(entry.Remainder)
	if err != nil {
		return err
	}
	if parsed.Broadcast {
		host, port, err := discoverBroadcast(parsed, time.Duration(parsed.BroadcastTO)*time.Second)
		if err != nil {
			return err
		}
		parsed.Host, parsed.Port = host, port
	}
	if parsed.Port == 0 {
		parsed.Port = defaultNameServerPort
	}

	if err := c.bindListener(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			c.killReceiver.Store(true)
			c.closeSockets()
			c.killReceiver.Store(false)
		}
	}()

	ready := make(chan struct{})
	go c.acceptLoop(ready)
	select {
	case <-ready:
	case <-time.After(readyPollTimeout):
		return cmsgerr.New(cmsgerr.NetworkError)
	}

	hostName, _ := os.Hostname()
	c.hostName = hostName

	nameConn, err := net.DialTimeout("tcp", net.JoinHostPort(parsed.Host, strconv.Itoa(parsed.Port)), 10*time.Second)
	if err != nil {
		return cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	defer nameConn.Close()

	if err := c.sendConnectRequest(nameConn, parsed); err != nil {
		return err
	}
	capMask, err := c.readConnectReply(nameConn)
	if err != nil {
		return err
	}
	c.caps = capMask

	g, _ := errgroup.WithContext(context.Background())
	dial := func(dst *net.Conn, bufSize int) func() error {
		return func() error {
			conn, err := net.DialTimeout("tcp", net.JoinHostPort(c.serverHost, strconv.Itoa(c.serverTCPPort)), 10*time.Second)
			if err != nil {
				return cmsgerr.Wrap(cmsgerr.NetworkError, err)
			}
			if tc, ok := conn.(*net.TCPConn); ok && bufSize > 0 {
				_ = tc.SetWriteBuffer(bufSize)
			}
			*dst = conn
			return nil
		}
	}
	g.Go(dial(&c.tcpReceive, 0))
	g.Go(dial(&c.tcpKeepAlive, 0))
	g.Go(dial(&c.tcpSend, 256*1024))
	if err := g.Wait(); err != nil {
		return err
	}

	udpConn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP(c.serverHost), Port: c.serverUDPPort})
	if err != nil {
		return cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	c.udpSend = udpConn

	if c.promExporter == nil {
		c.promExporter = monitor.NewPrometheusExporter(prometheus.DefaultRegisterer, c.name, &c.counters)
	}

	go c.receiveLoop(c.tcpReceive, true)
	return nil
}

const defaultNameServerPort = 45000

func (c *Connection) bindListener() error {
	start := defaultListenPort
	if v := os.Getenv(defaultListenPortEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	var lastErr error
	for i := 0; i < maxListenPortTries; i++ {
		port := start + i
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			c.listener = ln
			c.listenPort = port
			return nil
		}
		lastErr = err
	}
	return cmsgerr.Wrapf(cmsgerr.SocketError, lastErr, "no free listening port in range %d-%d", start, start+maxListenPortTries)
}

func (c *Connection) sendConnectRequest(conn net.Conn, parsed locator.CMsg) error {
	v := version.Must(version.NewVersion(fmt.Sprintf("%d.%d.0", wire.ProtocolMajor, wire.ProtocolMinor)))
	strs := []string{
		parsed.Password,
		"cMsg",
		parsed.Subdomain,
		parsed.SubRemainder,
		c.hostName,
		c.name,
		c.originalUDL,
		c.description,
	}
	payload := make([]byte, 0, 256)
	payload = appendUint32(payload, uint32(v.Segments()[0]))
	payload = appendUint32(payload, uint32(v.Segments()[1]))
	payload = appendUint32(payload, uint32(c.listenPort))
	for _, s := range strs {
		payload = appendString(payload, s)
	}
	return wire.WriteFrame(conn, wire.ServerConnect, payload)
}

func (c *Connection) readConnectReply(conn net.Conn) (serverCapabilities, error) {
	r := bufio.NewReader(conn)
	id, body, err := wire.ReadFrame(r)
	if err != nil {
		return serverCapabilities{}, cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	if id != wire.ServerConnect || len(body) < 1 {
		return serverCapabilities{}, cmsgerr.New(cmsgerr.BadMessage)
	}
	if body[0] == 0 {
		msg, _ := decodeString(body[1:])
		return serverCapabilities{}, cmsgerr.Newf(cmsgerr.GenericError, "connect rejected by server: %s", msg)
	}
	mask := body[1]
	caps := serverCapabilities{
		HasSend:            mask&(1<<0) != 0,
		HasSyncSend:        mask&(1<<1) != 0,
		HasSubscribeAndGet: mask&(1<<2) != 0,
		HasSendAndGet:      mask&(1<<3) != 0,
		HasSubscribe:       mask&(1<<4) != 0,
		HasUnsubscribe:     mask&(1<<5) != 0,
		HasShutdown:        mask&(1<<6) != 0,
	}
	rest := body[2:]
	if len(rest) < 16 {
		return serverCapabilities{}, cmsgerr.New(cmsgerr.BadMessage)
	}
	serverMajor := binary.BigEndian.Uint32(rest[0:4])
	serverMinor := binary.BigEndian.Uint32(rest[4:8])
	if err := checkProtocolVersion(serverMajor, serverMinor); err != nil {
		return serverCapabilities{}, err
	}
	c.serverTCPPort = int(binary.BigEndian.Uint32(rest[8:12]))
	c.serverUDPPort = int(binary.BigEndian.Uint32(rest[12:16]))
	host, _ := decodeString(rest[16:])
	c.serverHost = host
	return caps, nil
}

// checkProtocolVersion compares the server's advertised protocol version
// against this client's (spec §4.4.1 step 7's "different-version" error).
// Only the major version must match; a newer server minor is accepted.
func checkProtocolVersion(serverMajor, serverMinor uint32) error {
	ours := version.Must(version.NewVersion(fmt.Sprintf("%d.%d.0", wire.ProtocolMajor, wire.ProtocolMinor)))
	theirs := version.Must(version.NewVersion(fmt.Sprintf("%d.%d.0", serverMajor, serverMinor)))
	if ours.Segments()[0] != theirs.Segments()[0] || theirs.Compare(ours) < 0 {
		return cmsgerr.Newf(cmsgerr.DifferentVersion, "client protocol %s incompatible with server %s", ours, theirs)
	}
	return nil
}

func appendUint32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

func appendString(b []byte, s string) []byte {
	b = appendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func decodeString(b []byte) (string, error) {
	if len(b) < 4 {
		return "", cmsgerr.New(cmsgerr.BadMessage)
	}
	n := int(binary.BigEndian.Uint32(b[0:4]))
	if len(b) < 4+n {
		return "", cmsgerr.New(cmsgerr.BadMessage)
	}
	return string(b[4 : 4+n]), nil
}

// Capability is the cMsg domain's registry entry.
type Capability struct {
	registry *domain.Registry
	log      *logrus.Entry
}

// New constructs the cMsg domain capability vector and registers it
// under the process-wide registry (spec §4.2: "permanent domains...
// registered once on first connect under a process-wide mutex").
func New(reg *domain.Registry, log *logrus.Entry) *Capability {
	c := &Capability{registry: reg, log: log}
	reg.Register("cmsg", c)
	return c
}

var _ domain.Capability = (*Capability)(nil)
