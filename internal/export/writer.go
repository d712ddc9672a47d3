// Package export declares the output collaborator this engine hands
// completed ski areas to, and a stdout/file JSON implementation of it,
// following the "write results to a file or stdout" helper the CLI this
// engine is descended from uses for its own terminal output.
package export

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/yuletide/openskidata-processor/internal/model"
)

// Writer persists finished ski areas to wherever the caller's output
// format lives (file, object storage, a downstream service).
type Writer interface {
	Write(ctx context.Context, skiAreas []model.Object) error
}

// feature is the JSON shape one ski area is written in: a GeoJSON geometry
// plus the subset of SkiAreaProperties downstream consumers care about.
type feature struct {
	ID         model.ObjectID    `json:"id"`
	Geometry   json.RawMessage   `json:"geometry,omitempty"`
	Name       string            `json:"name,omitempty"`
	Activities []string          `json:"activities,omitempty"`
	Statistics *model.Statistics `json:"statistics,omitempty"`
}

// JSONWriter writes ski areas as an indented JSON array to an io.Writer,
// following writeResults' json.NewEncoder(w) + SetIndent pattern.
type JSONWriter struct {
	w io.Writer
}

// NewJSONWriter returns a Writer that encodes to w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w}
}

func (jw *JSONWriter) Write(_ context.Context, skiAreas []model.Object) error {
	features := make([]feature, 0, len(skiAreas))
	for _, s := range skiAreas {
		activities := make([]string, 0, len(s.Activities))
		for _, a := range s.Activities.Slice() {
			activities = append(activities, string(a))
		}
		f := feature{ID: s.ID, Activities: activities}
		if s.Geometry != nil {
			geomJSON, err := geojson.Marshal(s.Geometry)
			if err != nil {
				return eris.Wrapf(err, "export: marshal geometry for %s", s.ID)
			}
			f.Geometry = geomJSON
		}
		if s.SkiArea != nil {
			f.Name = s.SkiArea.Name
			f.Statistics = s.SkiArea.Statistics
		}
		features = append(features, f)
	}

	enc := json.NewEncoder(jw.w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(features), "export: encode ski areas")
}

var _ Writer = (*JSONWriter)(nil)
