package observability

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// A family is one metric name with its labelled series. Label values are
// joined with labelSep into a map key and rendered at scrape time, sorted,
// in the Prometheus text format.

const labelSep = "\xff"

type family struct {
	name   string
	help   string
	typ    string
	labels []string

	mu     sync.Mutex
	series map[string]float64
}

func newCounter(name, help string, labels ...string) *family {
	return &family{name: name, help: help, typ: "counter", labels: labels, series: map[string]float64{}}
}

func newGauge(name, help string, labels ...string) *family {
	return &family{name: name, help: help, typ: "gauge", labels: labels, series: map[string]float64{}}
}

func (f *family) add(delta float64, values ...string) {
	key := seriesKey(len(f.labels), values)
	f.mu.Lock()
	f.series[key] += delta
	f.mu.Unlock()
}

func (f *family) inc(values ...string) { f.add(1, values...) }

func (f *family) set(v float64, values ...string) {
	key := seriesKey(len(f.labels), values)
	f.mu.Lock()
	f.series[key] = v
	f.mu.Unlock()
}

func (f *family) writeTo(ew *expoWriter) {
	ew.header(f.name, f.help, f.typ)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range sortedKeys(f.series) {
		ew.sample(f.name, renderLabels(f.labels, key), formatFloat(f.series[key]))
	}
}

// histogram keeps per-bucket (non-cumulative) counts; cumulative counts are
// produced when written.
type histogram struct {
	name   string
	help   string
	labels []string
	bounds []float64

	mu     sync.Mutex
	series map[string]*buckets
}

type buckets struct {
	counts []uint64 // len(bounds)+1, last slot is +Inf
	sum    float64
	total  uint64
}

func newHistogram(name, help string, bounds []float64, labels ...string) *histogram {
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	return &histogram{name: name, help: help, labels: labels, bounds: b, series: map[string]*buckets{}}
}

func (h *histogram) observe(v float64, values ...string) {
	key := seriesKey(len(h.labels), values)
	slot := sort.SearchFloat64s(h.bounds, v)
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.series[key]
	if !ok {
		b = &buckets{counts: make([]uint64, len(h.bounds)+1)}
		h.series[key] = b
	}
	b.counts[slot]++
	b.sum += v
	b.total++
}

func (h *histogram) writeTo(ew *expoWriter) {
	ew.header(h.name, h.help, "histogram")
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range sortedKeys(h.series) {
		b := h.series[key]
		var cum uint64
		for i, bound := range h.bounds {
			cum += b.counts[i]
			ew.sample(h.name+"_bucket", renderLabels(h.labels, key, "le", formatFloat(bound)), strconv.FormatUint(cum, 10))
		}
		ew.sample(h.name+"_bucket", renderLabels(h.labels, key, "le", "+Inf"), strconv.FormatUint(b.total, 10))
		labels := renderLabels(h.labels, key)
		ew.sample(h.name+"_sum", labels, formatFloat(b.sum))
		ew.sample(h.name+"_count", labels, strconv.FormatUint(b.total, 10))
	}
}

// expoWriter remembers the first write error so renderers stay linear.
type expoWriter struct {
	w   io.Writer
	err error
}

func (ew *expoWriter) header(name, help, typ string) {
	ew.printf("# HELP %s %s\n# TYPE %s %s\n", name, help, name, typ)
}

func (ew *expoWriter) sample(name, labels, value string) {
	ew.printf("%s%s %s\n", name, labels, value)
}

func (ew *expoWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// seriesKey pads missing label values with "unknown" and drops extras.
func seriesKey(n int, values []string) string {
	if n == 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "unknown"
		if i < len(values) {
			parts[i] = values[i]
		}
	}
	return strings.Join(parts, labelSep)
}

// renderLabels formats {name="value",...} for a series key plus optional
// trailing name/value pairs such as le.
func renderLabels(names []string, key string, extra ...string) string {
	if len(names) == 0 && len(extra) == 0 {
		return ""
	}
	var values []string
	if len(names) > 0 {
		values = strings.Split(key, labelSep)
	}
	pairs := make([]string, 0, len(names)+len(extra)/2)
	for i, name := range names {
		pairs = append(pairs, name+`="`+labelEscaper.Replace(values[i])+`"`)
	}
	for i := 0; i+1 < len(extra); i += 2 {
		pairs = append(pairs, extra[i]+`="`+labelEscaper.Replace(extra[i+1])+`"`)
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
