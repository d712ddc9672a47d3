package sqlite

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/yuletide/openskidata-processor/internal/model"
)

// objectRow is the flattened, JSON/WKB-encoded representation of a
// model.Object as stored in SQLite's object table. SQLite carries no
// PostGIS, so geometry predicates are evaluated in Go after decoding
// (internal/geometry), following this store's design note in SPEC_FULL.md.
type objectRow struct {
	key                   string
	id                    string
	kind                  string
	geometry              []byte
	activities            string
	source                string
	skiAreas              string
	isInSkiAreaPolygon    bool
	isBasisForNewSkiArea  bool
	isInSkiAreaSite       bool
	skiAreaProperties     *string
}

func encodeGeometry(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := wkb.Write(&buf, binary.LittleEndian, g); err != nil {
		return nil, eris.Wrap(err, "sqlite: encode geometry")
	}
	return buf.Bytes(), nil
}

func decodeGeometry(data []byte) (geom.T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := wkb.Read(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: decode geometry")
	}
	return g, nil
}

func encodeActivities(s model.ActivitySet) (string, error) {
	data, err := json.Marshal(s.Slice())
	if err != nil {
		return "", eris.Wrap(err, "sqlite: encode activities")
	}
	return string(data), nil
}

func decodeActivities(s string) (model.ActivitySet, error) {
	var activities []model.Activity
	if s != "" {
		if err := json.Unmarshal([]byte(s), &activities); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode activities")
		}
	}
	return model.NewActivitySet(activities...), nil
}

func encodeSkiAreas(ids []model.ObjectID) (string, error) {
	data, err := json.Marshal(ids)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: encode ski areas")
	}
	return string(data), nil
}

func decodeSkiAreas(s string) ([]model.ObjectID, error) {
	var ids []model.ObjectID
	if s != "" {
		if err := json.Unmarshal([]byte(s), &ids); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode ski areas")
		}
	}
	return ids, nil
}

func encodeSkiAreaProperties(p *model.SkiAreaProperties) (*string, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: encode ski area properties")
	}
	s := string(data)
	return &s, nil
}

func decodeSkiAreaProperties(s *string) (*model.SkiAreaProperties, error) {
	if s == nil {
		return nil, nil
	}
	var p model.SkiAreaProperties
	if err := json.Unmarshal([]byte(*s), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode ski area properties")
	}
	return &p, nil
}

func rowFromObject(o model.Object) (objectRow, error) {
	geomBytes, err := encodeGeometry(o.Geometry)
	if err != nil {
		return objectRow{}, err
	}
	activities, err := encodeActivities(o.Activities)
	if err != nil {
		return objectRow{}, err
	}
	skiAreas, err := encodeSkiAreas(o.SkiAreas)
	if err != nil {
		return objectRow{}, err
	}
	props, err := encodeSkiAreaProperties(o.SkiArea)
	if err != nil {
		return objectRow{}, err
	}
	return objectRow{
		key:                  string(o.Key),
		id:                   string(o.ID),
		kind:                 string(o.Kind),
		geometry:             geomBytes,
		activities:           activities,
		source:               string(o.Source),
		skiAreas:             skiAreas,
		isInSkiAreaPolygon:   o.IsInSkiAreaPolygon,
		isBasisForNewSkiArea: o.IsBasisForNewSkiArea,
		isInSkiAreaSite:      o.IsInSkiAreaSite,
		skiAreaProperties:    props,
	}, nil
}

func objectFromRow(r objectRow) (model.Object, error) {
	g, err := decodeGeometry(r.geometry)
	if err != nil {
		return model.Object{}, err
	}
	activities, err := decodeActivities(r.activities)
	if err != nil {
		return model.Object{}, err
	}
	skiAreas, err := decodeSkiAreas(r.skiAreas)
	if err != nil {
		return model.Object{}, err
	}
	props, err := decodeSkiAreaProperties(r.skiAreaProperties)
	if err != nil {
		return model.Object{}, err
	}
	return model.Object{
		Key:                   model.ObjectKey(r.key),
		ID:                    model.ObjectID(r.id),
		Kind:                  model.Kind(r.kind),
		Geometry:              g,
		Activities:            activities,
		Source:                model.Source(r.source),
		SkiAreas:              skiAreas,
		IsInSkiAreaPolygon:    r.isInSkiAreaPolygon,
		IsBasisForNewSkiArea:  r.isBasisForNewSkiArea,
		IsInSkiAreaSite:       r.isInSkiAreaSite,
		SkiArea:               props,
	}, nil
}
