package cmsgdomain

import (
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/domain"
	"github.com/JeffersonLab/cmsg-go/internal/monitor"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
)

// Monitor returns a Report built from this connection's local counters and
// subscription table (the same content as spec §4.1's keep-alive
// monitoring report). No frame is sent to the server and timeout is unused.
func (cap *Capability) Monitor(h domain.Handle, timeout time.Duration) (*monitor.Report, error) {
	c, err := asConnection(h)
	if err != nil {
		return nil, err
	}
	subs := c.subscriptionStats()
	return c.counters.Snapshot(subs), nil
}

func (c *Connection) subscriptionStats() []monitor.Subscription {
	c.subscribeMu.RLock()
	subs := make([]*subscription, 0, len(c.subsByKey))
	for _, sub := range c.subsByKey {
		subs = append(subs, sub)
	}
	c.subscribeMu.RUnlock()

	out := make([]monitor.Subscription, 0, len(subs))
	for _, sub := range subs {
		sub.mu.Lock()
		cbs := make([]monitor.CallbackStat, 0, len(sub.callbacks))
		for _, rec := range sub.callbacks {
			cbs = append(cbs, monitor.CallbackStat{
				Subject:  sub.subject,
				Type:     sub.msgType,
				Received: rec.received.Load(),
				Queued:   int64(len(rec.queue)),
			})
		}
		sub.mu.Unlock()
		out = append(out, monitor.Subscription{
			Subject:   sub.subject,
			Type:      sub.msgType,
			Callbacks: cbs,
		})
	}
	return out
}

// Start and Stop only validate the handle. There is no stopped receive
// state: subscriptions stay armed and inbound deliveries reach callbacks
// whether or not Stop has been called.
func (cap *Capability) Start(h domain.Handle) error {
	_, err := asConnection(h)
	return err
}

func (cap *Capability) Stop(h domain.Handle) error {
	_, err := asConnection(h)
	return err
}

// Disconnect tears down every socket and subscription worker. The
// multiplexer (pkg/cmsg) has already atomically cleared `connected`
// before calling this (spec §4.3), so concurrent operations fail fast
// instead of racing the teardown.
func (cap *Capability) Disconnect(h domain.Handle) error {
	c, ok := h.(*Connection)
	if !ok {
		return cmsgerr.New(cmsgerr.BadArgument)
	}
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.killReceiver.Store(true)
	c.closeKillDispatch()
	c.closeSockets()

	c.subscribeMu.Lock()
	for _, sub := range c.subsByKey {
		sub.mu.Lock()
		for _, rec := range sub.callbacks {
			close(rec.stop)
		}
		sub.mu.Unlock()
	}
	c.subsByKey = map[string]*subscription{}
	c.cbByID = map[domain.SubscriptionID]*callbackRecord{}
	c.subscribeMu.Unlock()

	return nil
}

// SetShutdownHandler installs the user's shutdown callback. Connect installs
// no default handler, so until this is called a shutdown-clients request
// (or a failover that finds no server) runs no handler at all.
func (cap *Capability) SetShutdownHandler(h domain.Handle, fn domain.ShutdownHandler, userArg any) error {
	c, err := asConnection(h)
	if err != nil {
		return err
	}
	c.shutdownMu.Lock()
	c.shutdownHandler, c.shutdownArg = fn, userArg
	c.shutdownMu.Unlock()
	return nil
}

// ShutdownClients asks the server to forward a shutdown-clients request
// to every connected client, optionally including this one.
func (cap *Capability) ShutdownClients(h domain.Handle, includeMe bool) error {
	c, err := asConnection(h)
	if err != nil {
		return err
	}
	if !c.caps.HasShutdown {
		return cmsgerr.New(cmsgerr.NotImplemented)
	}
	flag := byte(0)
	if includeMe {
		flag = 1
	}
	c.sockMu.Lock()
	defer c.sockMu.Unlock()
	if err := wire.WriteFrame(c.tcpSend, wire.ShutdownClients, []byte{flag}); err != nil {
		return cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	return nil
}

// ShutdownServers asks the server (and any servers it forwards to, for a
// clustered deployment) to shut down.
func (cap *Capability) ShutdownServers(h domain.Handle) error {
	c, err := asConnection(h)
	if err != nil {
		return err
	}
	if !c.caps.HasShutdown {
		return cmsgerr.New(cmsgerr.NotImplemented)
	}
	c.sockMu.Lock()
	defer c.sockMu.Unlock()
	if err := wire.WriteFrame(c.tcpSend, wire.ShutdownServers, nil); err != nil {
		return cmsgerr.Wrap(cmsgerr.NetworkError, err)
	}
	return nil
}
