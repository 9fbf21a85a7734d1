// Package message defines the cMsg wire-level message record (spec §3).
//
// The generic accessor/setter surface the original C API exposes over
// this record (subject/type/text/byte-array getters and setters) is
// explicitly out of scope (spec §1: "routine data access") — callers use
// the exported fields directly, which is the idiomatic Go equivalent.
package message

import "time"

// BitInfo holds the four single-bit flags carried in a message's wire
// bit-info word.
type BitInfo struct {
	IsRequest             bool
	IsResponse            bool
	IsNullResponse        bool
	ByteArrayIsBigEndian  bool
}

// Decided Open Question (spec §9): cMsgNeedToSwap/getByteArrayEndian
// literally tests "(info & BIG_ENDIAN_FLAG) > 1". We implement the
// recommended fix (!= 0) rather than preserving the apparent off-by-one,
// since nothing in spec §3/§8 depends on the buggy reading.

// ByteArray is a payload byte slice with a conditional-ownership tag
// (spec §3 lifecycle, design note §9: "pointer-identity byte arrays with
// conditional ownership"). Owned byte arrays were populated by a copying
// API and are this message's alone to mutate/release; borrowed ones
// merely reference memory supplied by the caller and must not be mutated
// or freed through the message.
type ByteArray struct {
	Bytes  []byte
	Offset int
	Length int
	Owned  bool
}

// Slice returns the addressed sub-slice of Bytes, or nil if empty.
func (b ByteArray) Slice() []byte {
	if b.Bytes == nil || b.Length <= 0 {
		return nil
	}
	end := b.Offset + b.Length
	if end > len(b.Bytes) {
		end = len(b.Bytes)
	}
	if b.Offset >= end {
		return nil
	}
	return b.Bytes[b.Offset:end]
}

// Copy returns a deep, owned copy of the byte array regardless of the
// source's ownership tag.
func (b ByteArray) Copy() ByteArray {
	s := b.Slice()
	if s == nil {
		return ByteArray{Owned: true}
	}
	out := make([]byte, len(s))
	copy(out, s)
	return ByteArray{Bytes: out, Offset: 0, Length: len(out), Owned: true}
}

// SubscriptionContext is populated only while a callback is processing a
// delivered message (spec §3), and is the zero value otherwise.
type SubscriptionContext struct {
	Domain     string
	Subject    string
	Type       string
	Locator    string
	QueueDepth *int32 // live pointer to the callback's queue-depth counter
}

// SendContext carries the reliable-vs-unreliable transport hint for an
// outbound message (spec §3's "send context").
type SendContext struct {
	Reliable bool // true selects TCP, false selects UDP (spec glossary: "Reliable-send flag")
}

// Message is a single cMsg record, as specified in spec §3.
//
// Invariants enforced by callers of this type (not the zero-value
// constructor, matching the C API where an empty message is a valid
// starting point): Subject and Type must be non-empty printable strings
// with no backtick, single-quote, or double-quote; Creator is assigned
// once at send time and never rewritten; length fields are non-negative;
// the byte-array endian flag reflects the wire byte order, not the host's.
type Message struct {
	// Identity
	Version    int
	SysMsgID   int // server-assigned, correlates request/response
	SenderToken int // client-assigned; reused for sendAndGet correlation
	Info       BitInfo

	// Routing text
	Domain       string // set by server on receipt
	Subject      string
	Type         string
	Creator      string // set once to the original sender, never rewritten
	Sender       string
	SenderHost   string
	Receiver     string
	ReceiverHost string

	// Timestamps (millisecond resolution)
	SenderTime time.Time
	UserTime   time.Time

	UserInt int32
	Text    string
	Byte    ByteArray

	Subscription SubscriptionContext
	Send         SendContext
}

// NeedToSwap reports whether the byte array's recorded endianness differs
// from bigEndianHost. Grounds the spec §9 Open Question decision above.
func (m *Message) NeedToSwap(bigEndianHost bool) bool {
	return m.Info.ByteArrayIsBigEndian != bigEndianHost
}

// SetCreatorIfUnset assigns Creator iff it is currently empty, matching
// the "assigned at send time iff unset, never rewritten" invariant.
func (m *Message) SetCreatorIfUnset(sender string) {
	if m.Creator == "" {
		m.Creator = sender
	}
}

// DeepCopy returns an independent copy of m, including an owned copy of
// the byte array, for hand-off to a callback queue (spec §3 lifecycle:
// "ownership transfers to the queue and then to the callback").
func (m *Message) DeepCopy() *Message {
	cp := *m
	cp.Byte = m.Byte.Copy()
	return &cp
}
