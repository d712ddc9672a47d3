package postgres

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/yuletide/openskidata-processor/internal/model"
)

// encodeGeometry produces EWKB bytes (SRID-tagged) suitable for
// ST_GeomFromEWKB, following the EWKB encoding used in the associator's
// tiger/wkb.go for shapefile ingestion.
func encodeGeometry(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	if g.SRID() == 0 {
		g2, err := geom.SetSRID(g, 4326)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: encode geometry")
		}
		g = g2
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode geometry")
	}
	return data, nil
}

// decodeGeometry decodes the plain WKB bytes ST_AsBinary returns.
func decodeGeometry(data []byte) (geom.T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := wkb.Read(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: decode geometry")
	}
	return g, nil
}

func encodeActivities(s model.ActivitySet) ([]byte, error) {
	data, err := json.Marshal(s.Slice())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode activities")
	}
	return data, nil
}

func decodeActivities(data []byte) (model.ActivitySet, error) {
	var activities []model.Activity
	if len(data) > 0 {
		if err := json.Unmarshal(data, &activities); err != nil {
			return nil, eris.Wrap(err, "postgres: decode activities")
		}
	}
	return model.NewActivitySet(activities...), nil
}

func encodeSkiAreas(ids []model.ObjectID) ([]byte, error) {
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode ski areas")
	}
	return data, nil
}

func decodeSkiAreas(data []byte) ([]model.ObjectID, error) {
	var ids []model.ObjectID
	if len(data) > 0 {
		if err := json.Unmarshal(data, &ids); err != nil {
			return nil, eris.Wrap(err, "postgres: decode ski areas")
		}
	}
	return ids, nil
}

func encodeSkiAreaProperties(p *model.SkiAreaProperties) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode ski area properties")
	}
	return data, nil
}

func decodeSkiAreaProperties(data []byte) (*model.SkiAreaProperties, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p model.SkiAreaProperties
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: decode ski area properties")
	}
	return &p, nil
}

// row mirrors one scanned objects row; geometry travels as raw WKB
// (ST_AsBinary), the rest as JSONB.
type row struct {
	key                   string
	id                    string
	kind                  string
	geometry              []byte
	activities            []byte
	source                string
	skiAreas              []byte
	isInSkiAreaPolygon    bool
	isBasisForNewSkiArea  bool
	isInSkiAreaSite       bool
	skiAreaProperties     []byte
}

func rowFromObject(o model.Object) (row, error) {
	geomBytes, err := encodeGeometry(o.Geometry)
	if err != nil {
		return row{}, err
	}
	activities, err := encodeActivities(o.Activities)
	if err != nil {
		return row{}, err
	}
	skiAreas, err := encodeSkiAreas(o.SkiAreas)
	if err != nil {
		return row{}, err
	}
	props, err := encodeSkiAreaProperties(o.SkiArea)
	if err != nil {
		return row{}, err
	}
	return row{
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

func objectFromRow(r row) (model.Object, error) {
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
		Key:                  model.ObjectKey(r.key),
		ID:                   model.ObjectID(r.id),
		Kind:                 model.Kind(r.kind),
		Geometry:             g,
		Activities:           activities,
		Source:               model.Source(r.source),
		SkiAreas:             skiAreas,
		IsInSkiAreaPolygon:   r.isInSkiAreaPolygon,
		IsBasisForNewSkiArea: r.isBasisForNewSkiArea,
		IsInSkiAreaSite:      r.isInSkiAreaSite,
		SkiArea:              props,
	}, nil
}
