package monitor

import "encoding/xml"

// The monitoring report's wire format is server-authoritative and the
// spec leaves its exact schema unspecified beyond "a small XML document
// enumerating each active subscription and callback with received and
// queued message counts" (spec §4.1). This file fixes one concrete,
// documented schema so client and server agree; retune xmlReport if a
// real deployment's server emits something different.

type xmlCallback struct {
	Received int64 `xml:"received,attr"`
	Queued   int64 `xml:"queued,attr"`
}

type xmlSubscription struct {
	Subject   string        `xml:"subject,attr"`
	Type      string        `xml:"type,attr"`
	Callbacks []xmlCallback `xml:"callback"`
}

type xmlReport struct {
	XMLName                 xml.Name          `xml:"monitorData"`
	TCPSends                int64             `xml:"tcpSends,attr"`
	UDPSends                int64             `xml:"udpSends,attr"`
	SyncSends               int64             `xml:"syncSends,attr"`
	SubscribeAndGets        int64             `xml:"subscribeAndGets,attr"`
	SendAndGets             int64             `xml:"sendAndGets,attr"`
	Subscribes              int64             `xml:"subscribes,attr"`
	Unsubscribes            int64             `xml:"unsubscribes,attr"`
	PendingSubscribeAndGets int64             `xml:"pendingSubscribeAndGets,attr"`
	PendingSendAndGets      int64             `xml:"pendingSendAndGets,attr"`
	Subscriptions           []xmlSubscription `xml:"subscription"`
}

// MarshalXML renders a Report as the documented monitorData document.
func MarshalXML(r *Report) ([]byte, error) {
	doc := xmlReport{
		TCPSends:                r.TCPSends,
		UDPSends:                r.UDPSends,
		SyncSends:               r.SyncSends,
		SubscribeAndGets:        r.SubscribeAndGets,
		SendAndGets:             r.SendAndGets,
		Subscribes:              r.Subscribes,
		Unsubscribes:            r.Unsubscribes,
		PendingSubscribeAndGets: r.PendingSubscribeAndGets,
		PendingSendAndGets:      r.PendingSendAndGets,
	}
	for _, s := range r.Subscriptions {
		xs := xmlSubscription{Subject: s.Subject, Type: s.Type}
		for _, cb := range s.Callbacks {
			xs.Callbacks = append(xs.Callbacks, xmlCallback{Received: cb.Received, Queued: cb.Queued})
		}
		doc.Subscriptions = append(doc.Subscriptions, xs)
	}
	return xml.Marshal(doc)
}

// UnmarshalXML parses a monitorData document produced by MarshalXML (or
// by a server following the same schema) back into a Report.
func UnmarshalXML(data []byte) (*Report, error) {
	var doc xmlReport
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	r := &Report{
		TCPSends:                doc.TCPSends,
		UDPSends:                doc.UDPSends,
		SyncSends:               doc.SyncSends,
		SubscribeAndGets:        doc.SubscribeAndGets,
		SendAndGets:             doc.SendAndGets,
		Subscribes:              doc.Subscribes,
		Unsubscribes:            doc.Unsubscribes,
		PendingSubscribeAndGets: doc.PendingSubscribeAndGets,
		PendingSendAndGets:      doc.PendingSendAndGets,
	}
	for _, xs := range doc.Subscriptions {
		s := Subscription{Subject: xs.Subject, Type: xs.Type}
		for _, cb := range xs.Callbacks {
			s.Callbacks = append(s.Callbacks, CallbackStat{Subject: xs.Subject, Type: xs.Type, Received: cb.Received, Queued: cb.Queued})
		}
		r.Subscriptions = append(r.Subscriptions, s)
	}
	return r, nil
}
