package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Point is one data point of a snapshot. Histograms report their count and
// sum.
type Point struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      int64             `json:"value"`
	Count      uint64            `json:"count,omitempty"`
}

// Snapshotter pulls the current values out of an in-process meter provider.
type Snapshotter struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewSnapshotter creates a meter provider whose values are read on demand.
func NewSnapshotter() *Snapshotter {
	reader := sdkmetric.NewManualReader()
	return &Snapshotter{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

func (s *Snapshotter) Provider() *sdkmetric.MeterProvider { return s.provider }

// Snapshot returns every int64 instrument keyed by name.
func (s *Snapshotter) Snapshot(ctx context.Context) (map[string][]Point, error) {
	var rm metricdata.ResourceMetrics
	if err := s.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	out := map[string][]Point{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = append(out[m.Name], Point{Attributes: attrs(dp.Attributes), Value: dp.Value})
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = append(out[m.Name], Point{Attributes: attrs(dp.Attributes), Value: dp.Sum, Count: dp.Count})
				}
			}
		}
	}
	for _, pts := range out {
		sort.Slice(pts, func(i, j int) bool { return pts[i].Value > pts[j].Value })
	}
	return out, nil
}

func attrs(set attribute.Set) map[string]string {
	kvs := set.ToSlice()
	if len(kvs) == 0 {
		return nil
	}
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

// ServeHTTP writes the snapshot as JSON.
func (s *Snapshotter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Snapshotter) Shutdown(ctx context.Context) error { return s.provider.Shutdown(ctx) }
