package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/report"
	dto "github.com/prometheus/client_model/go"
)

// JSONMetricsOutput is the JSON form of a collector's state.
type JSONMetricsOutput struct {
	Metadata JSONMetadata    `json:"metadata"`
	Summary  *report.Summary `json:"summary,omitempty"`
	Metrics  []Metric        `json:"metrics"`
}

// JSONMetadata describes when the snapshot was taken.
type JSONMetadata struct {
	GeneratedAt string `json:"generated_at"`
	StartTime   string `json:"start_time,omitempty"`
	Suite       string `json:"suite,omitempty"`
}

// Metric is a single sample. Histograms are reported by their count and sum.
type Metric struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Value  float64           `json:"value"`
	Sum    float64           `json:"sum,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Snapshot gathers the registry into plain samples, sorted by name.
func (c *Collector) Snapshot() (*JSONMetricsOutput, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	c.mu.Lock()
	out := &JSONMetricsOutput{
		Metadata: JSONMetadata{
			GeneratedAt: time.Now().Format(time.RFC3339),
			Suite:       c.suite,
		},
		Summary: c.last,
		Metrics: []Metric{},
	}
	if !c.start.IsZero() {
		out.Metadata.StartTime = c.start.Format(time.RFC3339)
	}
	c.mu.Unlock()

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			out.Metrics = append(out.Metrics, sample(mf, m))
		}
	}
	sort.SliceStable(out.Metrics, func(i, j int) bool {
		return out.Metrics[i].Name < out.Metrics[j].Name
	})
	return out, nil
}

func sample(mf *dto.MetricFamily, m *dto.Metric) Metric {
	s := Metric{Name: mf.GetName()}
	if len(m.GetLabel()) > 0 {
		s.Labels = make(map[string]string, len(m.GetLabel()))
		for _, lp := range m.GetLabel() {
			s.Labels[lp.GetName()] = lp.GetValue()
		}
	}

	switch mf.GetType() {
	case dto.MetricType_COUNTER:
		s.Type = "counter"
		s.Value = m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		s.Type = "gauge"
		s.Value = m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		s.Type = "histogram"
		s.Value = float64(m.GetHistogram().GetSampleCount())
		s.Sum = m.GetHistogram().GetSampleSum()
	default:
		s.Type = "untyped"
		s.Value = m.GetUntyped().GetValue()
	}
	return s
}

// WriteJSON writes Snapshot to path as indented JSON.
func (c *Collector) WriteJSON(path string) error {
	out, err := c.Snapshot()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
