package rcdomain

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRcdomain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "rcdomain Suite")
}
