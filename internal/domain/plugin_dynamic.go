//go:build cmsg_dynamic_plugins

package domain

import (
	"fmt"
	"plugin"
	"strings"
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/message"
	"github.com/JeffersonLab/cmsg-go/internal/monitor"
)

// symbolLoader resolves a lowercased domain name to a .so built with
// `go build -buildmode=plugin`, exporting one function per operation
// named cmsg_<domain>_<operation> (spec §4.2, §6). It is only compiled
// in when the cmsg_dynamic_plugins build tag is set: plugin loading is
// Linux-only and most deployments only ever need cMsg and RC.
func symbolLoader(searchDir string) Loader {
	return func(name string) (Capability, error) {
		path := fmt.Sprintf("%s/%s.so", searchDir, strings.ToLower(name))
		p, err := plugin.Open(path)
		if err != nil {
			return nil, cmsgerr.Newf(cmsgerr.NoClassFound, "domain %q: %v", name, err)
		}
		return newPluginCapability(name, p)
	}
}

// pluginCapability adapts the cmsg_<domain>_<operation> symbols of an
// opened plugin to the Capability interface.
type pluginCapability struct {
	name    string
	connect func(string, ConnectOptions) (Handle, error)
	send    func(Handle, *message.Message) error
	// Only connect (required) and send (optional) are looked up by
	// symbol name. The remaining operations are never resolved from the
	// plugin and always return NotImplemented.
	plugin *plugin.Plugin
}

func newPluginCapability(name string, p *plugin.Plugin) (*pluginCapability, error) {
	pc := &pluginCapability{name: name, plugin: p}

	connectSym, err := p.Lookup(symbolName(name, "connect"))
	if err != nil {
		return nil, cmsgerr.Newf(cmsgerr.NoClassFound, "domain %q: missing connect symbol: %v", name, err)
	}
	fn, ok := connectSym.(func(string, ConnectOptions) (Handle, error))
	if !ok {
		return nil, cmsgerr.Newf(cmsgerr.NoClassFound, "domain %q: connect symbol has the wrong type", name)
	}
	pc.connect = fn

	if sendSym, err := p.Lookup(symbolName(name, "send")); err == nil {
		if fn, ok := sendSym.(func(Handle, *message.Message) error); ok {
			pc.send = fn
		}
	}
	return pc, nil
}

func symbolName(domainName, operation string) string {
	return fmt.Sprintf("cmsg_%s_%s", strings.ToLower(domainName), operation)
}

func (p *pluginCapability) Connect(locatorList string, opts ConnectOptions) (Handle, error) {
	return p.connect(locatorList, opts)
}

func (p *pluginCapability) Send(h Handle, msg *message.Message) error {
	if p.send == nil {
		return cmsgerr.New(cmsgerr.NotImplemented)
	}
	return p.send(h, msg)
}

func (p *pluginCapability) SyncSend(Handle, *message.Message, time.Duration) (int32, error) {
	return 0, cmsgerr.New(cmsgerr.NotImplemented)
}
func (p *pluginCapability) Flush(Handle) error { return cmsgerr.New(cmsgerr.NotImplemented) }
func (p *pluginCapability) Subscribe(Handle, string, string, Callback, SubscribeOptions) (SubscriptionID, error) {
	return 0, cmsgerr.New(cmsgerr.NotImplemented)
}
func (p *pluginCapability) Unsubscribe(Handle, SubscriptionID) error {
	return cmsgerr.New(cmsgerr.NotImplemented)
}
func (p *pluginCapability) SubscribeAndGet(Handle, string, string, time.Duration) (*message.Message, error) {
	return nil, cmsgerr.New(cmsgerr.NotImplemented)
}
func (p *pluginCapability) SendAndGet(Handle, *message.Message, time.Duration) (*message.Message, error) {
	return nil, cmsgerr.New(cmsgerr.NotImplemented)
}
func (p *pluginCapability) Monitor(Handle, time.Duration) (*monitor.Report, error) {
	return nil, cmsgerr.New(cmsgerr.NotImplemented)
}
func (p *pluginCapability) Start(Handle) error           { return cmsgerr.New(cmsgerr.NotImplemented) }
func (p *pluginCapability) Stop(Handle) error             { return cmsgerr.New(cmsgerr.NotImplemented) }
func (p *pluginCapability) Disconnect(Handle) error       { return cmsgerr.New(cmsgerr.NotImplemented) }
func (p *pluginCapability) SetShutdownHandler(Handle, ShutdownHandler, any) error {
	return cmsgerr.New(cmsgerr.NotImplemented)
}
func (p *pluginCapability) ShutdownClients(Handle, bool) error {
	return cmsgerr.New(cmsgerr.NotImplemented)
}
func (p *pluginCapability) ShutdownServers(Handle) error {
	return cmsgerr.New(cmsgerr.NotImplemented)
}

// NewSymbolLoader exposes symbolLoader to callers that want to register a
// search directory for dynamically loaded domains.
func NewSymbolLoader(searchDir string) Loader { return symbolLoader(searchDir) }
