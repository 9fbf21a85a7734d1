package wire_test

import (
	"bytes"

	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Frame", func() {
	It("round-trips id and payload through WriteFrame/ReadFrame", func() {
		var buf bytes.Buffer
		Expect(wire.WriteFrame(&buf, wire.Send, []byte("hello"))).To(Succeed())

		id, payload, err := wire.ReadFrame(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(wire.Send))
		Expect(payload).To(Equal([]byte("hello")))
	})

	It("round-trips an empty payload", func() {
		var buf bytes.Buffer
		Expect(wire.WriteFrame(&buf, wire.KeepAlive, nil)).To(Succeed())

		id, payload, err := wire.ReadFrame(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(wire.KeepAlive))
		Expect(payload).To(BeEmpty())
	})

	It("rejects a truncated frame", func() {
		var buf bytes.Buffer
		Expect(wire.WriteFrame(&buf, wire.Send, []byte("hello"))).To(Succeed())
		truncated := bytes.NewReader(buf.Bytes()[:6])
		_, _, err := wire.ReadFrame(truncated)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("PublishedBody", func() {
	It("round-trips every field through EncodePublished/DecodePublished", func() {
		in := wire.PublishedBody{
			Version:     1,
			UserInt:     42,
			SysMsgID:    7,
			SenderToken: 99,
			Info: message.BitInfo{
				IsRequest:            true,
				IsResponse:           false,
				IsNullResponse:       false,
				ByteArrayIsBigEndian: true,
			},
			SenderTimeMillis: 1700000000123,
			UserTimeMillis:   1700000000456,
			Subject:          "SUBJECT",
			Type:             "TYPE",
			Creator:          "alice",
			Text:             "payload text",
			ByteArray:        []byte{0x01, 0x02, 0x03, 0xff},
		}

		out, err := wire.DecodePublished(wire.EncodePublished(in))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})

	It("rejects a body shorter than the fixed header", func() {
		_, err := wire.DecodePublished([]byte{1, 2, 3})
		Expect(err).To(HaveOccurred())
	})

	It("rejects a body whose variable payload is truncated", func() {
		full := wire.EncodePublished(wire.PublishedBody{Subject: "SUBJ", Type: "TYPE"})
		_, err := wire.DecodePublished(full[:len(full)-2])
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("DeliveryBody", func() {
	It("round-trips the published fields plus routing metadata", func() {
		in := wire.DeliveryBody{
			PublishedBody: wire.PublishedBody{
				Subject:   "S",
				Type:      "T",
				Text:      "body",
				ByteArray: []byte{9, 9},
			},
			Domain:       "cMsg",
			Sender:       "alice",
			SenderHost:   "host1.jlab.org",
			Receiver:     "bob",
			ReceiverHost: "host2.jlab.org",
			Acknowledge:  true,
		}

		out, err := wire.DecodeDelivery(wire.EncodeDelivery(in))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})
})
