package locator_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLocator(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "locator Suite")
}
