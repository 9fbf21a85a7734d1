package locator_test

import (
	"github.com/JeffersonLab/cmsg-go/internal/locator"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseOne", func() {
	It("accepts the optional case-insensitive cmsg: prefix", func() {
		p, err := locator.ParseOne("CMSG:cMsg://localhost:45000/cMsg/test")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Domain).To(Equal("cmsg"))
		Expect(p.Remainder).To(Equal("localhost:45000/cMsg/test"))
	})

	It("accepts a locator without the cmsg: prefix", func() {
		p, err := locator.ParseOne("rc://host/?expid=carlExp")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Domain).To(Equal("rc"))
	})

	It("rejects a locator missing \"://\"", func() {
		_, err := locator.ParseOne("cmsg:bogus")
		Expect(err).To(HaveOccurred())
	})

	It("rejects an invalid domain name", func() {
		_, err := locator.ParseOne("cmsg:bad domain://host")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Locator round-trip (spec §8 property 1)", func() {
	It("de-duplicates and reconstructs a single semicolon-joined locator", func() {
		list := "cmsg:cMsg://h1:45000/cMsg/a;cmsg:cMsg://h2:45000/cMsg/b;cmsg:cMsg://h1:45000/cMsg/a"

		parsed, err := locator.ParseList(list)
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(HaveLen(2), "the duplicate third entry must be removed")

		reconstructed, err := locator.Reconstruct(parsed)
		Expect(err).NotTo(HaveOccurred())

		reparsed, err := locator.ParseList(reconstructed)
		Expect(err).NotTo(HaveOccurred())
		Expect(locator.SortedRemainders(reparsed)).To(Equal(locator.SortedRemainders(parsed)))
	})

	It("rejects a list whose entries span more than one domain", func() {
		_, err := locator.ParseList("cmsg:cMsg://h1:45000/cMsg/a;cmsg:rc://h2/?expid=x")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ParseCMsg", func() {
	It("parses host, port, subdomain, sub-remainder and query options", func() {
		c, err := locator.ParseCMsg("localhost:45000/cMsg/test?cmsgpassword=abc&broadcastTO=2")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Host).To(Equal("localhost"))
		Expect(c.Port).To(Equal(45000))
		Expect(c.Subdomain).To(Equal("cMsg"))
		Expect(c.SubRemainder).To(Equal("test"))
		Expect(c.Password).To(Equal("abc"))
		Expect(c.BroadcastTO).To(Equal(2))
		Expect(c.Broadcast).To(BeFalse())
	})

	It("recognizes the broadcast host sentinels", func() {
		c, err := locator.ParseCMsg("broadcast/cMsg/test")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Broadcast).To(BeTrue())
	})

	It("rejects a remainder with no subdomain", func() {
		_, err := locator.ParseCMsg("localhost:45000")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ParseRC", func() {
	It("parses expid, broadcastTO, and connectTO", func() {
		rc, err := locator.ParseRC("/?expid=carlExp&broadcastTO=2&connectTO=5")
		Expect(err).NotTo(HaveOccurred())
		Expect(rc.ExpID).To(Equal("carlExp"))
		Expect(rc.BroadcastTO).To(Equal(2))
		Expect(rc.ConnectTO).To(Equal(5))
		Expect(rc.Broadcast).To(BeTrue())
	})
})

var _ = Describe("configFile expansion (spec §8 property 2)", func() {
	It("resolves a file containing exactly one valid non-configFile locator", func() {
		contents := "# comment\n\ncmsg:cMsg://localhost:45000/cMsg/test\n"
		substitute, err := locator.ExpandConfigFile(contents)
		Expect(err).NotTo(HaveOccurred())
		Expect(substitute).To(Equal("cmsg:cMsg://localhost:45000/cMsg/test"))
	})

	It("fails with bad-format when the file resolves to another configFile locator", func() {
		_, err := locator.ExpandConfigFile("cmsg:configFile:///etc/other.locator\n")
		Expect(err).To(HaveOccurred())
	})

	It("fails when the file has no locator line", func() {
		_, err := locator.ExpandConfigFile("# just comments\n\n")
		Expect(err).To(HaveOccurred())
	})

	It("splices the substitute locator into the parsed list in place", func() {
		entries, err := locator.ParseList("cmsg:configFile:///path/to/file")
		Expect(err).NotTo(HaveOccurred())

		expanded, err := locator.ExpandList(entries, func(path string) (string, error) {
			Expect(path).To(Equal("/path/to/file"))
			return "cmsg:cMsg://localhost:45000/cMsg/test\n", nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(expanded).To(HaveLen(1))
		Expect(expanded[0].Domain).To(Equal("cmsg"))
		Expect(expanded[0].Remainder).To(Equal("localhost:45000/cMsg/test"))
	})
})
