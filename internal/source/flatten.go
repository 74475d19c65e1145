package source

import (
	"math"

	"time-value-analyser/quake-ingester/internal/model"
)

// Detail is the per-event document behind a feature's detail URL.
type Detail struct {
	ID         string `json:"id"`
	Properties struct {
		Time     *int64               `json:"time"`
		Place    string               `json:"place"`
		Mag      *float64             `json:"mag"`
		Products map[string][]Product `json:"products"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []*float64 `json:"coordinates"` // lon, lat, depth
	} `json:"geometry"`
}

// Product is one contributed data product; only its properties are used.
type Product struct {
	Source     string      `json:"source"`
	Properties propertyMap `json:"properties"`
}

// Flatten builds the record for a detail document. Every property of every
// matched product becomes a "<type>-<property>" column; a matched type the
// document does not carry adds nothing.
func Flatten(d Detail, matched []string) model.Record {
	rec := model.Record{
		ID:        d.ID,
		Place:     d.Properties.Place,
		Latitude:  coord(d.Geometry.Coordinates, 1),
		Longitude: coord(d.Geometry.Coordinates, 0),
		Depth:     coord(d.Geometry.Coordinates, 2),
		Magnitude: math.NaN(),
	}
	if d.Properties.Time != nil {
		rec.Time = model.FromEpochMillis(*d.Properties.Time)
	}
	if d.Properties.Mag != nil {
		rec.Magnitude = *d.Properties.Mag
	}
	for _, typ := range matched {
		prods := d.Properties.Products[typ]
		if len(prods) == 0 {
			continue
		}
		// the catalog lists the preferred product first
		props := prods[0].Properties
		for _, k := range props.keys {
			rec.SetProp(model.PropertyColumn(typ, k), model.CoerceAny(props.vals[k]))
		}
	}
	return rec
}

func coord(c []*float64, i int) float64 {
	if i >= len(c) || c[i] == nil {
		return math.NaN()
	}
	return *c[i]
}
