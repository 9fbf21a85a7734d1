// Package rcdomain implements the RC (run control) domain client: UDP
// broadcast discovery of a run-control server followed by a
// server-initiated TCP handshake, then delegation of every subscription
// and send operation to the cMsg domain's dispatcher (spec §4.5).
package rcdomain

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"golang.org/x/time/rate"
)

// discoveryMagic tags an RC broadcast datagram, distinct from the cMsg
// domain's own broadcast magic so a shared port can tell them apart.
const discoveryMagic = 0x72635f63 // "rc_c"

const broadcastKind = 1

// discoveryReply is what the receiver thread records from the RC
// broadcast server's UDP reply (spec §4.5).
type discoveryReply struct {
	ServerPort int
	ServerHost string
	ExpID      string
}

// discover runs the three-party broadcast handshake's first leg: send a
// discovery datagram once a second until a reply with a matching expid
// arrives or the timeout elapses.
func discover(listenPort int, clientName, expid string, timeout time.Duration) (discoveryReply, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return discoveryReply{}, cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	defer conn.Close()

	req := encodeDiscoveryRequest(listenPort, clientName, expid)
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: rcBroadcastPort}

	replyCh := make(chan discoveryReply, 1)
	errCh := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go receiveReplies(conn, expid, replyCh, errCh, done)
	go broadcastPeriodically(conn, dst, req, done)

	select {
	case r := <-replyCh:
		return r, nil
	case err := <-errCh:
		return discoveryReply{}, err
	case <-time.After(timeout):
		return discoveryReply{}, cmsgerr.New(cmsgerr.Timeout)
	}
}

const rcBroadcastPort = 6543

func encodeDiscoveryRequest(listenPort int, clientName, expid string) []byte {
	buf := make([]byte, 0, 64)
	var hdr [12]byte
	binary.BigEndian.PutUint32(hdr[0:4], discoveryMagic)
	binary.BigEndian.PutUint32(hdr[4:8], broadcastKind)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(listenPort))
	buf = append(buf, hdr[:]...)
	buf = appendDiscoveryString(buf, clientName)
	buf = appendDiscoveryString(buf, expid)
	return buf
}

func appendDiscoveryString(b []byte, s string) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	b = append(b, n[:]...)
	return append(b, s...)
}

// receiveReplies is the receiver thread of spec §4.5: it awaits a UDP
// reply carrying (magic, server port, server host, server expid) and
// ignores any datagram whose expid doesn't match.
func receiveReplies(conn *net.UDPConn, expid string, out chan<- discoveryReply, errOut chan<- error, done <-chan struct{}) {
	buf := make([]byte, 512)
	for {
		select {
		case <-done:
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		if n < 8 || binary.BigEndian.Uint32(buf[0:4]) != discoveryMagic {
			continue
		}
		serverPort := int(binary.BigEndian.Uint32(buf[4:8]))
		off := 8
		host, n1 := readDiscoveryString(buf[off:n])
		off += n1
		gotExpid, _ := readDiscoveryString(buf[off:n])
		if gotExpid != expid {
			continue // mismatched expid is ignored per spec §4.5
		}
		select {
		case out <- discoveryReply{ServerPort: serverPort, ServerHost: host, ExpID: gotExpid}:
		default:
		}
		return
	}
}

func readDiscoveryString(b []byte) (string, int) {
	if len(b) < 4 {
		return "", len(b)
	}
	n := int(binary.BigEndian.Uint32(b[0:4]))
	if len(b) < 4+n {
		return "", len(b)
	}
	return string(b[4 : 4+n]), 4 + n
}

// broadcastPeriodically is the broadcast thread of spec §4.5: it resends
// the discovery datagram every second using a rate limiter so the
// cadence is exact regardless of scheduling jitter.
func broadcastPeriodically(conn *net.UDPConn, dst *net.UDPAddr, payload []byte, done <-chan struct{}) {
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	for {
		select {
		case <-done:
			return
		default:
		}
		if err := limiter.Wait(context.Background()); err != nil {
			return
		}
		_, _ = conn.WriteToUDP(payload, dst)
	}
}
