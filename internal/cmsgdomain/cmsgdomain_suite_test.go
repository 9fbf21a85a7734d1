package cmsgdomain

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCmsgdomain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "cmsgdomain Suite")
}
