package monitor

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
)

// PrometheusExporter mirrors a connection's Counters as Prometheus
// gauges, labeled by connection name so a process with several cMsg
// connections (e.g. a failover pair during the handoff window) reports
// each one distinctly.
type PrometheusExporter struct {
	connName string
	counters *Counters

	tcpSends, udpSends, syncSends               prometheus.Gauge
	subscribeAndGets, sendAndGets               prometheus.Gauge
	subscribes, unsubscribes                    prometheus.Gauge
	pendingSubscribeAndGets, pendingSendAndGets prometheus.Gauge
	rssBytes, cpuPercent, goroutines            prometheus.Gauge
}

// NewPrometheusExporter registers one gauge per Counters field plus three
// process gauges (RSS and CPU percent sampled from gopsutil, goroutine
// count from the Go runtime), all under the "cmsg_client" namespace.
func NewPrometheusExporter(reg prometheus.Registerer, connName string, counters *Counters) *PrometheusExporter {
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cmsg_client",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"connection": connName},
		})
		reg.MustRegister(g)
		return g
	}

	e := &PrometheusExporter{
		connName:                connName,
		counters:                counters,
		tcpSends:                gauge("tcp_sends_total", "TCP sends issued on this connection"),
		udpSends:                gauge("udp_sends_total", "UDP sends issued on this connection"),
		syncSends:               gauge("sync_sends_total", "syncSend calls issued on this connection"),
		subscribeAndGets:        gauge("subscribe_and_gets_total", "subscribeAndGet calls issued"),
		sendAndGets:             gauge("send_and_gets_total", "sendAndGet calls issued"),
		subscribes:              gauge("subscribes_total", "subscribe calls issued"),
		unsubscribes:            gauge("unsubscribes_total", "unsubscribe calls issued"),
		pendingSubscribeAndGets: gauge("pending_subscribe_and_gets", "subscribeAndGet calls awaiting a reply"),
		pendingSendAndGets:      gauge("pending_send_and_gets", "sendAndGet calls awaiting a reply"),
		rssBytes:                gauge("process_rss_bytes", "resident set size of this process"),
		cpuPercent:              gauge("process_cpu_percent", "CPU percent of this process over the last sample interval"),
		goroutines:              gauge("process_goroutines", "live goroutine count of this process"),
	}
	return e
}

// Sample copies the live counters into the registered gauges and takes
// one gopsutil process-resource reading. It is meant to be called
// periodically, e.g. alongside the keep-alive thread.
func (e *PrometheusExporter) Sample(ctx context.Context, pid int32) error {
	e.tcpSends.Set(float64(e.counters.TCPSends.Load()))
	e.udpSends.Set(float64(e.counters.UDPSends.Load()))
	e.syncSends.Set(float64(e.counters.SyncSends.Load()))
	e.subscribeAndGets.Set(float64(e.counters.SubscribeAndGets.Load()))
	e.sendAndGets.Set(float64(e.counters.SendAndGets.Load()))
	e.subscribes.Set(float64(e.counters.Subscribes.Load()))
	e.unsubscribes.Set(float64(e.counters.Unsubscribes.Load()))
	e.pendingSubscribeAndGets.Set(float64(e.counters.PendingSubscribeAndGets.Load()))
	e.pendingSendAndGets.Set(float64(e.counters.PendingSendAndGets.Load()))
	e.goroutines.Set(float64(runtime.NumGoroutine()))

	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		e.rssBytes.Set(float64(mem.RSS))
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		e.cpuPercent.Set(cpu)
	}
	return nil
}

// SampleEvery runs Sample on a ticker until ctx is cancelled, matching
// the keep-alive thread's own periodic cadence.
func (e *PrometheusExporter) SampleEvery(ctx context.Context, pid int32, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = e.Sample(ctx, pid)
		}
	}
}
