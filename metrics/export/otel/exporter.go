package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcache"
	"github.com/MrEthical07/authcache/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource supplies snapshots. *authcache.Engine implements it.
type MetricsSource interface {
	MetricsSnapshot() authcache.MetricsSnapshot
}

// series pairs an engine metric with the attribute set it is reported under.
type series struct {
	id    authcache.MetricID
	attrs metric.MeasurementOption
}

type counterFamily struct {
	instrument metric.Int64ObservableCounter
	series     []series
}

type ratioGauge struct {
	def        internaldefs.Ratio
	instrument metric.Float64ObservableGauge
}

type latencyInstruments struct {
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
	series  []series
	// bucketAttrs[i][j] is series i at bound j.
	bucketAttrs [][]metric.MeasurementOption
}

// Exporter holds the callback registration; Close unregisters it.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []counterFamily
	ratios       []ratioGauge
	latency      latencyInstruments
}

func familySeries(f internaldefs.Family) []series {
	out := make([]series, 0, len(f.Series))
	for _, s := range f.Series {
		var kvs []attribute.KeyValue
		if f.Label != "" {
			kvs = append(kvs, attribute.String(f.Label, s.Value))
		}
		out = append(out, series{id: s.ID, attrs: metric.WithAttributes(kvs...)})
	}
	return out
}

// NewExporter creates one observable instrument per exported family and a
// single callback that reads a snapshot per collection.
func NewExporter(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, f := range internaldefs.CounterFamilies {
		ins, err := meter.Int64ObservableCounter(f.Name, metric.WithDescription(f.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", f.Name, err)
		}
		e.counters = append(e.counters, counterFamily{instrument: ins, series: familySeries(f)})
		observables = append(observables, ins)
	}

	for _, r := range internaldefs.Ratios {
		ins, err := meter.Float64ObservableGauge(r.Name, metric.WithDescription(r.Help), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("create gauge %s: %w", r.Name, err)
		}
		e.ratios = append(e.ratios, ratioGauge{def: r, instrument: ins})
		observables = append(observables, ins)
	}

	if err := e.buildLatency(meter); err != nil {
		return nil, err
	}
	observables = append(observables, e.latency.buckets, e.latency.count, e.latency.sum)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *Exporter) buildLatency(meter metric.Meter) error {
	h := internaldefs.LatencyHistogram
	l := &e.latency
	var err error
	if l.buckets, err = meter.Int64ObservableGauge(h.Name+"_bucket",
		metric.WithDescription("Cumulative authenticate latency bucket counts by outcome and upper bound.")); err != nil {
		return fmt.Errorf("create latency buckets: %w", err)
	}
	if l.count, err = meter.Int64ObservableGauge(h.Name+"_count",
		metric.WithDescription("Authenticate calls observed by outcome.")); err != nil {
		return fmt.Errorf("create latency count: %w", err)
	}
	if l.sum, err = meter.Float64ObservableGauge(h.Name+"_sum",
		metric.WithDescription("Total authenticate time by outcome."), metric.WithUnit("s")); err != nil {
		return fmt.Errorf("create latency sum: %w", err)
	}

	l.series = familySeries(h)
	for _, s := range h.Series {
		bounds := make([]metric.MeasurementOption, 0, len(internaldefs.BucketBounds)+1)
		for i := 0; i <= len(internaldefs.BucketBounds); i++ {
			bounds = append(bounds, metric.WithAttributes(
				attribute.String(h.Label, s.Value),
				attribute.String("le", internaldefs.BucketLabel(i)),
			))
		}
		l.bucketAttrs = append(l.bucketAttrs, bounds)
	}
	return nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return nil
	}

	for _, f := range e.counters {
		for _, s := range f.series {
			o.ObserveInt64(f.instrument, int64(snapshot.Counters[s.id]), s.attrs)
		}
	}
	for _, r := range e.ratios {
		if v, ok := r.def.Value(snapshot.Counters); ok {
			o.ObserveFloat64(r.instrument, v)
		}
	}

	l := e.latency
	for i, s := range l.series {
		raw, ok := snapshot.Histograms[s.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(raw)
		for j, n := range cumulative {
			o.ObserveInt64(l.buckets, int64(n), l.bucketAttrs[i][j])
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]), s.attrs)
		o.ObserveFloat64(l.sum, snapshot.HistogramSums[s.id].Seconds(), s.attrs)
	}
	return nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
