// Package wire implements the length-prefixed, big-endian binary frame
// codec used uniformly over TCP and UDP by every cMsg domain (spec §4.1).
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/JeffersonLab/cmsg-go/internal/message"
)

const (
	bitRequest      = 1 << 0
	bitResponse     = 1 << 1
	bitNullResponse = 1 << 2
	bitBigEndian    = 1 << 3
)

func encodeBitInfo(b message.BitInfo) uint32 {
	var v uint32
	if b.IsRequest {
		v |= bitRequest
	}
	if b.IsResponse {
		v |= bitResponse
	}
	if b.IsNullResponse {
		v |= bitNullResponse
	}
	if b.ByteArrayIsBigEndian {
		v |= bitBigEndian
	}
	return v
}

func decodeBitInfo(v uint32) message.BitInfo {
	// Open Question decision (spec §9, see internal/message doc comment):
	// treat each flag as armed whenever its bit is set (!= 0), not only
	// when the word also has a higher bit set.
	return message.BitInfo{
		IsRequest:            v&bitRequest != 0,
		IsResponse:           v&bitResponse != 0,
		IsNullResponse:       v&bitNullResponse != 0,
		ByteArrayIsBigEndian: v&bitBigEndian != 0,
	}
}

// WriteFrame writes a complete length-prefixed frame: a 4-byte body
// length (exclusive of itself), a 4-byte message id, then payload.
func WriteFrame(w io.Writer, id MessageID, payload []byte) error {
	bodyLen := uint32(4 + len(payload))
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], bodyLen)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(id))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one complete frame and returns its id and payload (the
// body with the id word stripped off).
func ReadFrame(r io.Reader) (MessageID, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("read frame length: %w", err)
	}
	bodyLen := binary.BigEndian.Uint32(lenBuf[:])
	if bodyLen < 4 {
		return 0, nil, fmt.Errorf("read frame: malformed body length %d", bodyLen)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("read frame body: %w", err)
	}
	id := MessageID(binary.BigEndian.Uint32(body[0:4]))
	return id, body[4:], nil
}

// PublishedBody is the fixed-plus-variable body of a published-message
// frame (spec §4.1): identity and routing-text lengths followed by the
// concatenated subject/type/creator/text/byte-array payload.
type PublishedBody struct {
	Version          int32
	UserInt          int32
	SysMsgID         int32
	SenderToken      int32
	Info             message.BitInfo
	SenderTimeMillis int64
	UserTimeMillis   int64
	Subject          string
	Type             string
	Creator          string
	Text             string
	ByteArray        []byte
}

const publishedFixedLen = 4*10 + 8 + 8 // version,userInt,sysMsgID,senderToken,bitInfo + 5 lengths, + 2 times

// EncodePublished renders a PublishedBody to its wire form (fixed body
// then the concatenated variable payload, spec §4.1 order: subject, type,
// creator, text, bytes).
func EncodePublished(b PublishedBody) []byte {
	subj, typ, creator, text := []byte(b.Subject), []byte(b.Type), []byte(b.Creator), []byte(b.Text)
	out := make([]byte, publishedFixedLen, publishedFixedLen+len(subj)+len(typ)+len(creator)+len(text)+len(b.ByteArray))

	binary.BigEndian.PutUint32(out[0:4], uint32(b.Version))
	binary.BigEndian.PutUint32(out[4:8], uint32(b.UserInt))
	binary.BigEndian.PutUint32(out[8:12], uint32(b.SysMsgID))
	binary.BigEndian.PutUint32(out[12:16], uint32(b.SenderToken))
	binary.BigEndian.PutUint32(out[16:20], encodeBitInfo(b.Info))
	binary.BigEndian.PutUint64(out[20:28], uint64(b.SenderTimeMillis))
	binary.BigEndian.PutUint64(out[28:36], uint64(b.UserTimeMillis))
	binary.BigEndian.PutUint32(out[36:40], uint32(len(subj)))
	binary.BigEndian.PutUint32(out[40:44], uint32(len(typ)))
	binary.BigEndian.PutUint32(out[44:48], uint32(len(creator)))
	binary.BigEndian.PutUint32(out[48:52], uint32(len(text)))
	binary.BigEndian.PutUint32(out[52:56], uint32(len(b.ByteArray)))

	out = append(out, subj...)
	out = append(out, typ...)
	out = append(out, creator...)
	out = append(out, text...)
	out = append(out, b.ByteArray...)
	return out
}

// DecodePublished parses the output of EncodePublished. It is the
// inverse operation exercised by the spec §8 frame round-trip property.
func DecodePublished(body []byte) (PublishedBody, error) {
	if len(body) < publishedFixedLen {
		return PublishedBody{}, fmt.Errorf("decode published: short body (%d bytes)", len(body))
	}
	var b PublishedBody
	b.Version = int32(binary.BigEndian.Uint32(body[0:4]))
	b.UserInt = int32(binary.BigEndian.Uint32(body[4:8]))
	b.SysMsgID = int32(binary.BigEndian.Uint32(body[8:12]))
	b.SenderToken = int32(binary.BigEndian.Uint32(body[12:16]))
	b.Info = decodeBitInfo(binary.BigEndian.Uint32(body[16:20]))
	b.SenderTimeMillis = int64(binary.BigEndian.Uint64(body[20:28]))
	b.UserTimeMillis = int64(binary.BigEndian.Uint64(body[28:36]))
	subjLen := int(binary.BigEndian.Uint32(body[36:40]))
	typLen := int(binary.BigEndian.Uint32(body[40:44]))
	creatorLen := int(binary.BigEndian.Uint32(body[44:48]))
	textLen := int(binary.BigEndian.Uint32(body[48:52]))
	byteLen := int(binary.BigEndian.Uint32(body[52:56]))

	rest := body[publishedFixedLen:]
	want := subjLen + typLen + creatorLen + textLen + byteLen
	if len(rest) < want {
		return PublishedBody{}, fmt.Errorf("decode published: short variable payload: have %d want %d", len(rest), want)
	}

	off := 0
	next := func(n int) []byte {
		s := rest[off : off+n]
		off += n
		return s
	}
	b.Subject = string(next(subjLen))
	b.Type = string(next(typLen))
	b.Creator = string(next(creatorLen))
	b.Text = string(next(textLen))
	ba := next(byteLen)
	b.ByteArray = append([]byte(nil), ba...)

	return b, nil
}

// DeliveryBody additionally carries the routing fields the server fills
// in on inbound delivery (spec §4.1: "Inbound delivery frames
// additionally carry sender, sender-host, receiver, receiver-host and an
// acknowledge flag").
type DeliveryBody struct {
	PublishedBody
	Domain       string
	Sender       string
	SenderHost   string
	Receiver     string
	ReceiverHost string
	Acknowledge  bool
}

// EncodeDelivery and DecodeDelivery append/parse the four extra routing
// strings and the one-byte acknowledge flag after the published body's
// variable payload.
func EncodeDelivery(b DeliveryBody) []byte {
	base := EncodePublished(b.PublishedBody)
	domain, sender, senderHost := []byte(b.Domain), []byte(b.Sender), []byte(b.SenderHost)
	receiver, receiverHost := []byte(b.Receiver), []byte(b.ReceiverHost)

	extra := make([]byte, 0, 4*5+1+len(domain)+len(sender)+len(senderHost)+len(receiver)+len(receiverHost))
	putLen := func(n int) {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(n))
		extra = append(extra, buf[:]...)
	}
	putLen(len(domain))
	putLen(len(sender))
	putLen(len(senderHost))
	putLen(len(receiver))
	putLen(len(receiverHost))
	if b.Acknowledge {
		extra = append(extra, 1)
	} else {
		extra = append(extra, 0)
	}
	extra = append(extra, domain...)
	extra = append(extra, sender...)
	extra = append(extra, senderHost...)
	extra = append(extra, receiver...)
	extra = append(extra, receiverHost...)

	return append(base, extra...)
}

func DecodeDelivery(body []byte) (DeliveryBody, error) {
	pub, err := DecodePublished(body)
	if err != nil {
		return DeliveryBody{}, err
	}
	// recompute where the published variable payload ended
	varLen := len(pub.Subject) + len(pub.Type) + len(pub.Creator) + len(pub.Text) + len(pub.ByteArray)
	tail := body[publishedFixedLen+varLen:]
	if len(tail) < 4*5+1 {
		return DeliveryBody{}, fmt.Errorf("decode delivery: short routing header")
	}
	domainLen := int(binary.BigEndian.Uint32(tail[0:4]))
	senderLen := int(binary.BigEndian.Uint32(tail[4:8]))
	senderHostLen := int(binary.BigEndian.Uint32(tail[8:12]))
	receiverLen := int(binary.BigEndian.Uint32(tail[12:16]))
	receiverHostLen := int(binary.BigEndian.Uint32(tail[16:20]))
	ack := tail[20] != 0
	rest := tail[21:]
	want := domainLen + senderLen + senderHostLen + receiverLen + receiverHostLen
	if len(rest) < want {
		return DeliveryBody{}, fmt.Errorf("decode delivery: short routing payload")
	}
	off := 0
	next := func(n int) string {
		s := string(rest[off : off+n])
		off += n
		return s
	}
	return DeliveryBody{
		PublishedBody: pub,
		Domain:        next(domainLen),
		Sender:        next(senderLen),
		SenderHost:    next(senderHostLen),
		Receiver:      next(receiverLen),
		ReceiverHost:  next(receiverHostLen),
		Acknowledge:   ack,
	}, nil
}
