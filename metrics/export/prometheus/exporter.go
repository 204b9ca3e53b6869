package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authcache"
	"github.com/MrEthical07/authcache/metrics/export/internaldefs"
)

// MetricsSource supplies snapshots. *authcache.Engine implements it.
type MetricsSource interface {
	MetricsSnapshot() authcache.MetricsSnapshot
}

// Exporter renders a MetricsSource on demand.
type Exporter struct {
	source MetricsSource
}

// NewExporter reads from source on every Render.
func NewExporter(source MetricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render with the Prometheus content type.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current snapshot. It is empty when metrics are disabled.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return ""
	}

	w := writer{}
	w.b.Grow(4096)
	for _, f := range internaldefs.CounterFamilies {
		w.header(f.Name, f.Help, "counter")
		for _, s := range f.Series {
			w.sample(f.Name, f.Label, s.Value, "", strconv.FormatUint(snapshot.Counters[s.ID], 10))
		}
	}
	for _, r := range internaldefs.Ratios {
		v, ok := r.Value(snapshot.Counters)
		if !ok {
			continue
		}
		w.header(r.Name, r.Help, "gauge")
		w.sample(r.Name, "", "", "", formatFloat(v))
	}
	w.latency(snapshot)
	return w.b.String()
}

type writer struct {
	b strings.Builder
}

func (w *writer) header(name, help, kind string) {
	w.b.WriteString("# HELP ")
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(escapeHelp(help))
	w.b.WriteString("\n# TYPE ")
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(kind)
	w.b.WriteByte('\n')
}

// sample writes one line. label/value is the family label; le, when set, is
// appended as the bucket bound.
func (w *writer) sample(name, label, value, le, v string) {
	w.b.WriteString(name)
	if label != "" || le != "" {
		w.b.WriteByte('{')
		if label != "" {
			w.b.WriteString(label)
			w.b.WriteString(`="`)
			w.b.WriteString(escapeLabel(value))
			w.b.WriteByte('"')
		}
		if le != "" {
			if label != "" {
				w.b.WriteByte(',')
			}
			w.b.WriteString(`le="`)
			w.b.WriteString(le)
			w.b.WriteByte('"')
		}
		w.b.WriteByte('}')
	}
	w.b.WriteByte(' ')
	w.b.WriteString(v)
	w.b.WriteByte('\n')
}

func (w *writer) latency(snapshot authcache.MetricsSnapshot) {
	h := internaldefs.LatencyHistogram
	wroteHeader := false
	for _, s := range h.Series {
		raw, ok := snapshot.Histograms[s.ID]
		if !ok {
			continue
		}
		if !wroteHeader {
			w.header(h.Name, h.Help, "histogram")
			wroteHeader = true
		}
		cumulative := internaldefs.CumulativeBuckets(raw)
		for i, n := range cumulative {
			w.sample(h.Name+"_bucket", h.Label, s.Value, internaldefs.BucketLabel(i), strconv.FormatUint(n, 10))
		}
		w.sample(h.Name+"_sum", h.Label, s.Value, "", formatFloat(snapshot.HistogramSums[s.ID].Seconds()))
		w.sample(h.Name+"_count", h.Label, s.Value, "", strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

func escapeLabel(v string) string {
	v = escapeHelp(v)
	return strings.ReplaceAll(v, `"`, `\"`)
}
