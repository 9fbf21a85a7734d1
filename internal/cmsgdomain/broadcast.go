package cmsgdomain

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/locator"
)

// broadcastMagic tags a cMsg-domain discovery datagram so a name server
// can tell it apart from unrelated UDP traffic on the same port.
const broadcastMagic = 0x634d7367 // "cMsg"

// discoverBroadcast resolves a broadcast host ("broadcast" or
// 255.255.255.255) to a concrete name-server host and port by sending a
// UDP broadcast and waiting for the first reply (spec §4.4.1 step 3,
// same sub-protocol as §4.5).
func discoverBroadcast(parsed locator.CMsg, timeout time.Duration) (host string, port int, err error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	port = parsed.Port
	if port == 0 {
		port = defaultNameServerPort
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return "", 0, cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	defer conn.Close()

	req := make([]byte, 4)
	binary.BigEndian.PutUint32(req, broadcastMagic)
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	if _, err := conn.WriteToUDP(req, dst); err != nil {
		return "", 0, cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", 0, cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	buf := make([]byte, 512)
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return "", 0, cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	if n < 8 || binary.BigEndian.Uint32(buf[0:4]) != broadcastMagic {
		return "", 0, cmsgerr.New(cmsgerr.BadMessage)
	}
	replyPort := int(binary.BigEndian.Uint32(buf[4:8]))
	return addr.IP.String(), replyPort, nil
}
