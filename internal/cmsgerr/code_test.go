package cmsgerr_test

import (
	"errors"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Code", func() {
	It("gives every defined code a non-empty description", func() {
		for c := cmsgerr.Success; c <= cmsgerr.Abort; c++ {
			Expect(c.String()).NotTo(BeEmpty())
		}
	})

	It("falls back to a generic description for an undefined code", func() {
		Expect(cmsgerr.Code(9999).String()).To(Equal("unknown error"))
	})
})

var _ = Describe("Error", func() {
	It("carries its code through Error() and Code()", func() {
		err := cmsgerr.New(cmsgerr.Timeout)
		Expect(err.Code()).To(Equal(cmsgerr.Timeout))
		Expect(err.Error()).To(Equal(cmsgerr.Timeout.String()))
	})

	It("matches by code via errors.Is regardless of message", func() {
		a := cmsgerr.Newf(cmsgerr.ServerDied, "lost connection to host1")
		b := cmsgerr.New(cmsgerr.ServerDied)
		Expect(errors.Is(a, b)).To(BeTrue())
	})

	It("does not match a different code", func() {
		a := cmsgerr.New(cmsgerr.Timeout)
		b := cmsgerr.New(cmsgerr.ServerDied)
		Expect(errors.Is(a, b)).To(BeFalse())
	})

	It("unwraps to the wrapped cause", func() {
		cause := errors.New("connection reset")
		err := cmsgerr.Wrap(cmsgerr.NetworkError, cause)
		Expect(errors.Unwrap(err)).To(Equal(cause))
	})
})
