package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LatencyStats summarizes the fetch latency of one poller in milliseconds
type LatencyStats struct {
	Count  int     `json:"count"`
	MeanMS float64 `json:"meanMs"`
	StdDev float64 `json:"stdDevMs"`
	Errors int     `json:"errors"`
}

// Collector bundles the service's Prometheus metrics and the running
// latency statistics reported by /health.
type Collector struct {
	gatherer prometheus.Gatherer

	PollTicks       *prometheus.CounterVec
	PollDurations   *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
	MountedScreens  prometheus.Gauge
	TrackedVehicles prometheus.Gauge

	mu      sync.Mutex
	latency map[string]*WelfordState
	errors  map[string]int
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_poll_ticks_total",
		Help: "Completed poll fetches, labeled by poller and result.",
	}, []string{"poller", "result"}), "transit_poll_ticks_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transit_poll_duration_seconds",
		Help:    "Upstream fetch latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"poller"}), "transit_poll_duration_seconds")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_http_requests_total",
		Help: "Handled HTTP requests, labeled by route pattern, method and status code.",
	}, []string{"route", "method", "code"}), "transit_http_requests_total")
	if err != nil {
		return nil, err
	}

	screens, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transit_mounted_screens",
		Help: "Map screens currently mounted.",
	}), "transit_mounted_screens")
	if err != nil {
		return nil, err
	}

	vehicles, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transit_tracked_vehicles",
		Help: "Vehicles in the latest GPS snapshot.",
	}), "transit_tracked_vehicles")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		PollTicks:       ticks,
		PollDurations:   durations,
		HTTPRequests:    requests,
		MountedScreens:  screens,
		TrackedVehicles: vehicles,
		latency:         make(map[string]*WelfordState),
		errors:          make(map[string]int),
	}, nil
}

// ObservePoll records one completed fetch
func (c *Collector) ObservePoll(name string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.PollTicks.WithLabelValues(name, result).Inc()
	c.PollDurations.WithLabelValues(name).Observe(elapsed.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.latency[name]
	if !ok {
		w = &WelfordState{}
		c.latency[name] = w
	}
	w.Update(float64(elapsed) / float64(time.Millisecond))
	if err != nil {
		c.errors[name]++
	}
}

// SetMountedScreens updates the mounted screens gauge
func (c *Collector) SetMountedScreens(n int) {
	if c == nil {
		return
	}
	c.MountedScreens.Set(float64(n))
}

// SetTrackedVehicles updates the tracked vehicles gauge
func (c *Collector) SetTrackedVehicles(n int) {
	if c == nil {
		return
	}
	c.TrackedVehicles.Set(float64(n))
}

// Latency returns a copy of the running latency statistics per poller
func (c *Collector) Latency() map[string]LatencyStats {
	out := make(map[string]LatencyStats)
	if c == nil {
		return out
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, w := range c.latency {
		out[name] = LatencyStats{
			Count:  w.Count,
			MeanMS: w.Mean,
			StdDev: w.StdDev(),
			Errors: c.errors[name],
		}
	}
	return out
}

// Middleware counts HTTP requests by chi route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	})
}

// Handler exposes a ready-to-use /metrics handler
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
