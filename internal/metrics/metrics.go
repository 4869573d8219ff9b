// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors exported on /metrics. All methods are safe
// on a nil receiver so components can run without instrumentation.
type Metrics struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

const (
	ExposuresStarted   = "skyframe_exposures_started_total"
	ExposuresCompleted = "skyframe_exposures_completed_total"
	ExposuresFailed    = "skyframe_exposures_failed_total"
	FramesStored       = "skyframe_frames_stored_total"
	FramesFailed       = "skyframe_frames_failed_total"
	FramesDropped      = "skyframe_frames_dropped_total"
	HubReconnects      = "skyframe_hub_reconnects_total"
	HubDrops           = "skyframe_hub_dropped_total"
	StorageFree        = "skyframe_storage_free_gigabytes"
	HubClients         = "skyframe_hub_clients"
	CameraConnected    = "skyframe_camera_connected"
	ProcessDuration    = "skyframe_process_duration_seconds"
)

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		counters: map[string]prometheus.Counter{},
		gauges:   map[string]prometheus.Gauge{},
		histos:   map[string]prometheus.Observer{},
	}

	counter := func(name, help string) {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		reg.MustRegister(c)
		m.counters[name] = c
	}
	gauge := func(name, help string) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		reg.MustRegister(g)
		m.gauges[name] = g
	}

	counter(ExposuresStarted, "Exposures accepted by the camera.")
	counter(ExposuresCompleted, "Exposures downloaded successfully.")
	counter(ExposuresFailed, "Exposures that failed to start or download.")
	counter(FramesStored, "Frames written to disk.")
	counter(FramesFailed, "Frames whose write failed.")
	counter(FramesDropped, "Frames not stored because the storage queue was full.")
	counter(HubReconnects, "Reconnect instructions sent to slow clients.")
	counter(HubDrops, "Messages dropped because a client queue was full.")
	gauge(StorageFree, "Free space on the storage volume in gigabytes.")
	gauge(HubClients, "Currently subscribed clients.")
	gauge(CameraConnected, "1 while a camera is connected.")

	process := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ProcessDuration,
		Help:    "Time spent converting a raw frame for display.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	reg.MustRegister(process)
	m.histos[ProcessDuration] = process

	return m
}

func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	if c, ok := m.counters[name]; ok {
		c.Inc()
	}
}

func (m *Metrics) Set(name string, v float64) {
	if m == nil {
		return
	}
	if g, ok := m.gauges[name]; ok {
		g.Set(v)
	}
}

func (m *Metrics) SetBool(name string, v bool) {
	if v {
		m.Set(name, 1)
	} else {
		m.Set(name, 0)
	}
}

func (m *Metrics) Observe(name string, d time.Duration) {
	if m == nil {
		return
	}
	if h, ok := m.histos[name]; ok {
		h.Observe(d.Seconds())
	}
}

// Counter exposes a registered counter, mainly for tests.
func (m *Metrics) Counter(name string) prometheus.Counter {
	return m.counters[name]
}

func (m *Metrics) Gauge(name string) prometheus.Gauge {
	return m.gauges[name]
}
