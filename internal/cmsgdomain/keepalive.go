package cmsgdomain

import (
	"bufio"
	"context"
	"os"
	"time"

	"github.com/JeffersonLab/cmsg-go/internal/wire"
)

const keepAliveInterval = 2 * time.Second

// keepAliveLoop is the keep-alive thread of spec §4.4.7: it periodically
// writes a keep-alive frame and reads back the server's reply (which, in
// a full deployment, embeds a monitoring report). A write or read
// failure means the server is unreachable and triggers failover.
// Alongside it, the Prometheus exporter samples process RSS, CPU, and
// goroutine count once per tick (spec §4.4.7, SPEC_FULL §11).
func (c *Connection) keepAliveLoop() {
	r := bufio.NewReader(c.tcpKeepAlive)
	t := time.NewTicker(keepAliveInterval)
	defer t.Stop()

	if c.promExporter != nil {
		sampleCtx, cancelSample := context.WithCancel(context.Background())
		defer cancelSample()
		go c.promExporter.SampleEvery(sampleCtx, int32(os.Getpid()), keepAliveInterval)
	}

	for range t.C {
		if c.killReceiver.Load() {
			return
		}
		if err := wire.WriteFrame(c.tcpKeepAlive, wire.KeepAlive, nil); err != nil {
			c.onConnectionLost()
			return
		}
		if _, _, err := wire.ReadFrame(r); err != nil {
			c.onConnectionLost()
			return
		}
	}
}

// onConnectionLost runs the failover sequence once per failure; it is
// safe to call concurrently from both the keep-alive loop and a receive
// loop noticing the same dead connection.
func (c *Connection) onConnectionLost() {
	if err := c.runFailover(); err != nil {
		c.connected.Store(false)
		c.runShutdownHandler()
	}
}
