package cmsg_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCmsg(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "cmsg Suite")
}
