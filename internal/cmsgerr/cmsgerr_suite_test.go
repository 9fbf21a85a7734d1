package cmsgerr_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCmsgerr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "cmsgerr Suite")
}
