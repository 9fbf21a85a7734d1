package rcdomain

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("splitUDPTCP", func() {
	It("parses the rc-connect text field into udp and tcp ports", func() {
		udpPort, tcpPort, host, err := splitUDPTCP("7000:7001", "rcsrv")
		Expect(err).NotTo(HaveOccurred())
		Expect(udpPort).To(Equal(7000))
		Expect(tcpPort).To(Equal(7001))
		Expect(host).To(Equal("rcsrv"))
	})

	It("rejects a text field missing the ':' separator", func() {
		_, _, _, err := splitUDPTCP("7000", "rcsrv")
		Expect(err).To(HaveOccurred())
	})

	It("rejects non-numeric ports", func() {
		_, _, _, err := splitUDPTCP("abc:def", "rcsrv")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("discovery datagram encoding", func() {
	It("round-trips the client name and expid strings", func() {
		req := encodeDiscoveryRequest(7000, "carlClient", "carlExp")

		off := 12 // magic + kind + listen port
		name, n1 := readDiscoveryString(req[off:])
		off += n1
		expid, _ := readDiscoveryString(req[off:])

		Expect(name).To(Equal("carlClient"))
		Expect(expid).To(Equal("carlExp"))
	})
})
