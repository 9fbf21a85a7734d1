package cmsgdomain

import (
	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
	"github.com/JeffersonLab/cmsg-go/internal/wire"
)

// runFailover walks the failover list starting just past the current
// index, connecting to each candidate in turn and, on success,
// re-establishing every live subscription (spec §4.4.8). failoverRunMu
// and failoverLimiter are per-connection (spec §1: a process may hold
// several simultaneous domain connections, so failover on one must never
// serialize behind or be rate-limited by failover on another).
func (c *Connection) runFailover() error {
	c.failoverRunMu.Lock()
	defer c.failoverRunMu.Unlock()
	if !c.failoverLimiter.Allow() {
		return cmsgerr.New(cmsgerr.LostConnection)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.killReceiver.Store(true)
	c.closeSockets()
	c.killReceiver.Store(false)
	c.wakeAllPendingServerDied()

	c.failoverListMu.Lock()
	list := c.failoverList
	start := c.failoverIndex + 1
	c.failoverListMu.Unlock()

	n := len(list)
	for offset := 0; offset < n; offset++ {
		i := (start + offset) % n
		c.resubscribeComplete.Store(false)
		if err := c.connectTo(list[i]); err != nil {
			c.log.WithError(err).WithField("candidate", i).Debug("failover candidate failed")
			continue
		}
		c.failoverListMu.Lock()
		c.failoverIndex = i
		c.failoverListMu.Unlock()
		c.connected.Store(true)
		go c.keepAliveLoop()
		c.resubscribeAll()
		return nil
	}
	return cmsgerr.New(cmsgerr.LostConnection)
}

func (c *Connection) closeSockets() {
	c.sockMu.Lock()
	defer c.sockMu.Unlock()
	for _, conn := range []interface{ Close() error }{c.tcpSend, c.tcpReceive, c.tcpKeepAlive, c.udpSend} {
		if conn != nil {
			_ = conn.Close()
		}
	}
	if c.listener != nil {
		_ = c.listener.Close()
	}
}

// resubscribeAll re-issues a subscribe frame for every subscription the
// caller registered before the failover, without disturbing their
// queues, worker pools, or callbacks (spec §4.4.8).
func (c *Connection) resubscribeAll() {
	c.subscribeMu.RLock()
	subs := make([]*subscription, 0, len(c.subsByKey))
	for _, sub := range c.subsByKey {
		subs = append(subs, sub)
	}
	c.subscribeMu.RUnlock()

	for _, sub := range subs {
		if err := c.sendSubscribeFrame(wire.Subscribe, sub.subject, sub.msgType); err != nil {
			c.log.WithError(err).WithField("subject", sub.subject).Warn("resubscribe failed after failover")
		}
	}
	c.resubscribeComplete.Store(true)
}
