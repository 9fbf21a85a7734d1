package message_test

import (
	"github.com/JeffersonLab/cmsg-go/internal/message"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ValidSubjectOrType", func() {
	It("rejects empty strings", func() {
		Expect(message.ValidSubjectOrType("")).To(BeFalse())
	})

	It("rejects strings with quote characters", func() {
		Expect(message.ValidSubjectOrType("foo`bar")).To(BeFalse())
		Expect(message.ValidSubjectOrType("foo'bar")).To(BeFalse())
		Expect(message.ValidSubjectOrType(`foo"bar`)).To(BeFalse())
	})

	It("accepts plain printable strings", func() {
		Expect(message.ValidSubjectOrType("SUBJECT.*")).To(BeTrue())
	})
})

var _ = Describe("ByteArray", func() {
	It("copies only the addressed slice, deeply and owned", func() {
		src := message.ByteArray{Bytes: []byte("hello world"), Offset: 6, Length: 5}
		cp := src.Copy()
		Expect(cp.Owned).To(BeTrue())
		Expect(cp.Slice()).To(Equal([]byte("world")))

		src.Bytes[6] = 'W'
		Expect(cp.Slice()).To(Equal([]byte("world")), "copy must be independent of the source backing array")
	})
})

var _ = Describe("Message", func() {
	It("assigns Creator only once", func() {
		m := &message.Message{}
		m.SetCreatorIfUnset("alice")
		m.SetCreatorIfUnset("bob")
		Expect(m.Creator).To(Equal("alice"))
	})

	It("deep-copies the byte array on DeepCopy", func() {
		m := &message.Message{Byte: message.ByteArray{Bytes: []byte("payload"), Length: 7, Owned: false}}
		cp := m.DeepCopy()
		Expect(cp.Byte.Owned).To(BeTrue())
		m.Byte.Bytes[0] = 'X'
		Expect(cp.Byte.Slice()[0]).To(Equal(byte('p')))
	})

	It("treats the endian flag literally against the host flag (Open Question fix: != 0)", func() {
		m := &message.Message{Info: message.BitInfo{ByteArrayIsBigEndian: true}}
		Expect(m.NeedToSwap(false)).To(BeTrue())
		Expect(m.NeedToSwap(true)).To(BeFalse())
	})
})
