// Package prometheus exposes engine counters and the Authenticate latency
// histogram as a prometheus.Collector.
//
// The collector reads [pmscanauth.Engine.MetricsSnapshot] on each scrape and
// never mutates engine state. Counter names are pmscanauth_*_total; the
// histogram is pmscanauth_authenticate_latency_seconds.
package prometheus
