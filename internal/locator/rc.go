package locator

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
)

// RC is a parsed RC-domain remainder:
// <host>[:<port>]/?expid=<name>&broadcastTO=<sec>&connectTO=<sec> (spec §4.2).
type RC struct {
	Host        string
	Port        int
	ExpID       string
	BroadcastTO int
	ConnectTO   int
	Broadcast   bool
}

// ParseRC parses the remainder of a cmsg:rc://... locator.
func ParseRC(remainder string) (RC, error) {
	hostPort, _, query := splitRemainder(remainder)
	var host string
	var port int
	if hostPort != "" {
		var err error
		host, port, err = splitHostPort(hostPort)
		if err != nil {
			return RC{}, err
		}
	}
	rc := RC{
		Host:      host,
		Port:      port,
		Broadcast: host == "" || host == "broadcast" || host == "255.255.255.255",
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return RC{}, cmsgerr.Newf(cmsgerr.BadFormat, "RC locator %q: bad query: %v", remainder, err)
	}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		switch strings.ToLower(key) {
		case "expid":
			rc.ExpID = v
		case "broadcastto":
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n < 0 {
				return RC{}, cmsgerr.Newf(cmsgerr.BadFormat, "RC locator %q: bad broadcastTO", remainder)
			}
			rc.BroadcastTO = n
		case "connectto":
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n < 0 {
				return RC{}, cmsgerr.Newf(cmsgerr.BadFormat, "RC locator %q: bad connectTO", remainder)
			}
			rc.ConnectTO = n
		}
	}
	return rc, nil
}
