package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Sample is one labelled counter value, flattened for printing.
type Sample struct {
	Name  string            `json:"name" yaml:"name"`
	Label map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Value float64           `json:"value" yaml:"value"`
}

// Summary gathers every counter and histogram count of the registry, sorted
// by name. Histograms report their sample count.
func (m *Dispatch) Summary() ([]Sample, error) {
	if m == nil {
		return nil, nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			s := Sample{Name: fam.GetName(), Label: labels(metric)}
			switch fam.GetType() {
			case dto.MetricType_COUNTER:
				s.Value = metric.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				s.Value = float64(metric.GetHistogram().GetSampleCount())
			default:
				continue
			}
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func labels(m *dto.Metric) map[string]string {
	if len(m.GetLabel()) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func counterValue(m *Dispatch, get func() prometheus.Counter) float64 {
	if m == nil {
		return 0
	}
	var out dto.Metric
	if err := get().Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}
