package wire

// MessageID identifies the meaning of a frame's fixed body (spec §4.1).
type MessageID int32

// Request ids, client -> server.
const (
	ServerConnect MessageID = iota + 1
	ServerDisconnect
	KeepAlive
	ShutdownClients
	ShutdownServers
	Send
	SyncSend
	Subscribe
	Unsubscribe
	SubscribeAndGet
	UnSubscribeAndGet
	SendAndGet
	UnSendAndGet
	Monitor
)

// Response ids, server -> client.
const (
	GetResponse MessageID = iota + 100
	SubscribeResponse
	ServerGetResponse
	RCConnect
	RCConnectAbort
	// SyncSendReply is not used by this client: syncSend's single 32-bit
	// status integer arrives unframed on the receive socket and is
	// correlated positionally (see cmsgdomain's SyncSend and receiveLoop).
	SyncSendReply
)

// MaxUDPFrameBytes is the largest frame this client will write to a UDP
// socket (spec §4.1: "must fit inside a single datagram <= 8192 bytes").
const MaxUDPFrameBytes = 8192

// protocol version exchanged during the cMsg connect handshake (spec
// §4.4.1 step 6). Encoded as a hashicorp/go-version string for the
// connect-time comparison in internal/cmsgdomain.
const (
	ProtocolMajor = 1
	ProtocolMinor = 0
)
