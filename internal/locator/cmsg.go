package locator

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
)

// CMsg is a parsed cMsg-domain remainder:
// <host>[:<port>]/<subdomain>/<sub-remainder>?opt=val&... (spec §4.2).
type CMsg struct {
	Host         string
	Port         int // 0 means "use the domain default"
	Subdomain    string
	SubRemainder string
	Password     string
	BroadcastTO  int
	Broadcast    bool
}

// ParseCMsg parses the remainder of a cmsg:cMsg://... locator.
func ParseCMsg(remainder string) (CMsg, error) {
	hostPort, path, query := splitRemainder(remainder)
	host, port, err := splitHostPort(hostPort)
	if err != nil {
		return CMsg{}, err
	}

	path = strings.TrimPrefix(path, "/")
	segs := strings.SplitN(path, "/", 2)
	if segs[0] == "" {
		return CMsg{}, cmsgerr.Newf(cmsgerr.BadFormat, "cMsg locator %q: missing subdomain", remainder)
	}
	c := CMsg{
		Host:      host,
		Port:      port,
		Subdomain: segs[0],
		Broadcast: host == "broadcast" || host == "255.255.255.255",
	}
	if len(segs) == 2 {
		c.SubRemainder = segs[1]
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return CMsg{}, cmsgerr.Newf(cmsgerr.BadFormat, "cMsg locator %q: bad query: %v", remainder, err)
	}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		switch strings.ToLower(key) {
		case "cmsgpassword":
			c.Password = vals[0]
		case "broadcastto":
			n, err := strconv.Atoi(vals[0])
			if err != nil || n < 0 {
				return CMsg{}, cmsgerr.Newf(cmsgerr.BadFormat, "cMsg locator %q: bad broadcastTO", remainder)
			}
			c.BroadcastTO = n
		}
	}
	return c, nil
}

// splitRemainder divides "<hostport>/<path>?<query>" into its three parts.
func splitRemainder(remainder string) (hostPort, path, query string) {
	main := remainder
	if i := strings.IndexByte(remainder, '?'); i >= 0 {
		main, query = remainder[:i], remainder[i+1:]
	}
	if i := strings.IndexByte(main, '/'); i >= 0 {
		hostPort, path = main[:i], main[i:]
	} else {
		hostPort = main
	}
	return hostPort, path, query
}

func splitHostPort(hostPort string) (host string, port int, err error) {
	if hostPort == "" {
		return "", 0, cmsgerr.Newf(cmsgerr.BadFormat, "locator: empty host")
	}
	if i := strings.LastIndexByte(hostPort, ':'); i >= 0 {
		p, convErr := strconv.Atoi(hostPort[i+1:])
		if convErr != nil {
			return "", 0, cmsgerr.Newf(cmsgerr.BadFormat, "locator %q: bad port", hostPort)
		}
		return hostPort[:i], p, nil
	}
	return hostPort, 0, nil
}
