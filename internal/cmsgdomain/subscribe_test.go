package cmsgdomain

import (
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("subjectMatches", func() {
	It("matches '*' against any run of characters", func() {
		Expect(subjectMatches("SUBJECT.*", "SUBJECT.child")).To(BeTrue())
		Expect(subjectMatches("SUBJECT.*", "SUBJECT.")).To(BeTrue())
		Expect(subjectMatches("SUBJECT.*", "OTHER")).To(BeFalse())
	})

	It("matches '?' against exactly one character", func() {
		Expect(subjectMatches("A?C", "ABC")).To(BeTrue())
		Expect(subjectMatches("A?C", "AC")).To(BeFalse())
	})

	It("matches a literal pattern only against an identical value", func() {
		Expect(subjectMatches("EXACT", "EXACT")).To(BeTrue())
		Expect(subjectMatches("EXACT", "EXACTLY")).To(BeFalse())
	})
})

var _ = Describe("subKey", func() {
	It("differs when either subject or type differs", func() {
		Expect(subKey("S", "T")).NotTo(Equal(subKey("S", "U")))
		Expect(subKey("S", "T")).NotTo(Equal(subKey("R", "T")))
		Expect(subKey("S", "T")).To(Equal(subKey("S", "T")))
	})
})

var _ = Describe("message <-> wire conversion", func() {
	It("round-trips through messageToPublished and DecodePublished", func() {
		m := &message.Message{
			Subject: "SUBJECT",
			Type:    "TYPE",
			Creator: "alice",
			Text:    "hello",
			Byte:    message.ByteArray{Bytes: []byte{1, 2, 3}, Length: 3},
		}
		out, err := wire.DecodePublished(wire.EncodePublished(messageToPublished(m)))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Subject).To(Equal(m.Subject))
		Expect(out.Type).To(Equal(m.Type))
		Expect(out.Creator).To(Equal(m.Creator))
		Expect(out.Text).To(Equal(m.Text))
		Expect(out.ByteArray).To(Equal(m.Byte.Slice()))
	})

	It("recovers subject/type/text through deliveryToMessage", func() {
		d := wire.DeliveryBody{
			PublishedBody: wire.PublishedBody{Subject: "S", Type: "T", Text: "body"},
			Sender:        "alice",
			Domain:        "cMsg",
		}
		m := deliveryToMessage(d)
		Expect(m.Subject).To(Equal("S"))
		Expect(m.Type).To(Equal("T"))
		Expect(m.Text).To(Equal("body"))
		Expect(m.Sender).To(Equal("alice"))
		Expect(m.Domain).To(Equal("cMsg"))
	})
})
