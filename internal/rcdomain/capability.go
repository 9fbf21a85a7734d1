package rcdomain

import (
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/monitor"
)

// Send and Subscribe/Unsubscribe delegate to the embedded cMsg
// dispatcher verbatim (spec §4.5: "there is no server-side subscription
// state" — only the transport beneath it differs from the cMsg domain).
func (cap *Capability) Send(h domain.Handle, msg *message.Message) error {
	return cap.cmsgCap.Send(h, msg)
}

func (cap *Capability) Subscribe(h domain.Handle, subject, msgType string, cb domain.Callback, opts domain.SubscribeOptions) (domain.SubscriptionID, error) {
	return cap.cmsgCap.Subscribe(h, subject, msgType, cb, opts)
}

func (cap *Capability) Unsubscribe(h domain.Handle, id domain.SubscriptionID) error {
	return cap.cmsgCap.Unsubscribe(h, id)
}

func (cap *Capability) Flush(h domain.Handle) error {
	return cap.cmsgCap.Flush(h)
}

func (cap *Capability) Start(h domain.Handle) error { return cap.cmsgCap.Start(h) }
func (cap *Capability) Stop(h domain.Handle) error  { return cap.cmsgCap.Stop(h) }

func (cap *Capability) Disconnect(h domain.Handle) error {
	return cap.cmsgCap.Disconnect(h)
}

func (cap *Capability) SetShutdownHandler(h domain.Handle, fn domain.ShutdownHandler, userArg any) error {
	return cap.cmsgCap.SetShutdownHandler(h, fn, userArg)
}

// SyncSend, SubscribeAndGet, SendAndGet, Monitor, ShutdownClients, and
// ShutdownServers are unsupported by the RC domain (spec §4.5).
func (cap *Capability) SyncSend(domain.Handle, *message.Message, time.Duration) (int32, error) {
	return 0, cmsgerr.New(cmsgerr.NotImplemented)
}

func (cap *Capability) SubscribeAndGet(domain.Handle, string, string, time.Duration) (*message.Message, error) {
	return nil, cmsgerr.New(cmsgerr.NotImplemented)
}

func (cap *Capability) SendAndGet(domain.Handle, *message.Message, time.Duration) (*message.Message, error) {
	return nil, cmsgerr.New(cmsgerr.NotImplemented)
}

func (cap *Capability) Monitor(domain.Handle, time.Duration) (*monitor.Report, error) {
	return nil, cmsgerr.New(cmsgerr.NotImplemented)
}

func (cap *Capability) ShutdownClients(domain.Handle, bool) error {
	return cmsgerr.New(cmsgerr.NotImplemented)
}

func (cap *Capability) ShutdownServers(domain.Handle) error {
	return cmsgerr.New(cmsgerr.NotImplemented)
}
