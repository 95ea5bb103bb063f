package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Exporter construction errors.
var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() pmscanauth.MetricsSnapshot
	AuditDropped() uint64
}

// latencySeries is one engine histogram exposed as a cumulative bucket gauge
// keyed by the "le" attribute, plus a sample count.
type latencySeries struct {
	id      pmscanauth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	bounds  []attribute.Set
}

// OTelExporter mirrors engine counters into observable OTel instruments.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     map[pmscanauth.MetricID]metric.Int64ObservableCounter
	latencies    []latencySeries
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments for engine on meter. Close
// unregisters the callback.
func NewOTelExporter(meter metric.Meter, engine *pmscanauth.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter over any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[pmscanauth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		series, err := newLatencySeries(meter, def)
		if err != nil {
			return nil, err
		}
		e.latencies = append(e.latencies, series)
		observables = append(observables, series.buckets, series.count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func newLatencySeries(meter metric.Meter, def internaldefs.HistogramDef) (latencySeries, error) {
	s := latencySeries{id: def.ID}

	var err error
	s.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative count per upper bound."),
		metric.WithUnit("{request}"))
	if err != nil {
		return s, fmt.Errorf("gauge %s_bucket: %w", def.Name, err)
	}
	s.count, err = meter.Int64ObservableGauge(def.Name+"_count",
		metric.WithDescription(def.Help+" Total samples."),
		metric.WithUnit("{request}"))
	if err != nil {
		return s, fmt.Errorf("gauge %s_count: %w", def.Name, err)
	}

	for _, le := range internaldefs.HistogramUpperBounds {
		s.bounds = append(s.bounds, attribute.NewSet(attribute.String("le", strconv.FormatFloat(le, 'f', -1, 64))))
	}
	s.bounds = append(s.bounds, attribute.NewSet(attribute.String("le", "+Inf")))
	return s, nil
}

// observe reads one snapshot per collection cycle.
func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}
	for _, s := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[s.id]))
		for i, set := range s.bounds {
			o.ObserveInt64(s.buckets, int64(cumulative[i]), metric.WithAttributeSet(set))
		}
		o.ObserveInt64(s.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
