package report

import (
	"encoding/json"
	"fmt"

	"github.com/sawpanic/irm/internal/tracer"
)

// Document is the machine-readable trace report consumed by position
// sizing tools.
type Document struct {
	RunID           string            `json:"run_id"`
	Owner           string            `json:"owner"`
	Source          string            `json:"source"`
	Delta           float64           `json:"delta"`
	NormalizedDelta float64           `json:"normalized_delta"`
	MetricType      string            `json:"metric_type,omitempty"`
	BaseVIX         float64           `json:"base_vix"`
	VIX             float64           `json:"vix"`
	Impacts         []tracer.Impact   `json:"impacts"`
	Exposures       []tracer.Exposure `json:"exposures"`
	Total           float64           `json:"total"`
	Stats           tracer.Stats      `json:"stats"`
}

// NewDocument assembles the JSON report of one trace.
func NewDocument(runID, owner string, trace *tracer.Trace, sum tracer.Summary) Document {
	exposures := sum.Exposures
	if exposures == nil {
		exposures = []tracer.Exposure{}
	}
	return Document{
		RunID:           runID,
		Owner:           owner,
		Source:          trace.Shock.Ticker,
		Delta:           trace.Shock.Delta,
		NormalizedDelta: trace.Shock.Normalized,
		MetricType:      trace.Shock.MetricType,
		BaseVIX:         trace.Shock.BaseVIX,
		VIX:             trace.Shock.VIX,
		Impacts:         trace.Impacts,
		Exposures:       exposures,
		Total:           sum.Total,
		Stats:           trace.Stats,
	}
}

// JSON writes doc as indented JSON.
func (w *Writer) JSON(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trace report: %w", err)
	}
	w.printf("%s\n", data)
	return w.err
}
