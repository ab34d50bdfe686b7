package query

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

type FeatureCollection struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Features   []Feature      `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// ToGeoJSON renders a grid result as a point-feature collection: one feature
// per cell, geometry at the cell center, all cell attributes as properties.
func ToGeoJSON(result *GridResult) FeatureCollection {
	features := make([]Feature, 0, len(result.Cells))

	for _, cell := range result.Cells {
		props := map[string]any{
			"row":          cell.Row,
			"col":          cell.Col,
			"risk_score":   cell.RiskScore,
			"risk_class":   string(cell.RiskClass),
			"data_quality": cell.DataQuality,
			"sources":      cell.Sources,
		}
		for variable, value := range cell.Values {
			props[variable] = value
		}

		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{cell.Lon, cell.Lat},
			},
			Properties: props,
		})
	}

	return FeatureCollection{
		Type: "FeatureCollection",
		Properties: map[string]any{
			"city_id":      result.CityID,
			"generated_at": result.GeneratedAt,
			"bounds":       result.BBox,
		},
		Features: features,
	}
}

// WriteCSV renders a grid result as rows of the persisted artifact schema:
// row, col, lat, lon, per-variable values, risk_score, risk_class,
// data_quality. Variable columns are the union over all returned cells, in
// sorted order; a cell missing a variable emits an empty field.
func WriteCSV(w io.Writer, result *GridResult) error {
	variables := make(map[string]struct{})
	for _, cell := range result.Cells {
		for v := range cell.Values {
			variables[v] = struct{}{}
		}
	}
	varCols := make([]string, 0, len(variables))
	for v := range variables {
		varCols = append(varCols, v)
	}
	sort.Strings(varCols)

	cw := csv.NewWriter(w)
	header := append([]string{"row", "col", "lat", "lon"}, varCols...)
	header = append(header, "risk_score", "risk_class", "data_quality", "sources")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("error writing csv header: %w", err)
	}

	for _, cell := range result.Cells {
		record := []string{
			strconv.Itoa(cell.Row),
			strconv.Itoa(cell.Col),
			strconv.FormatFloat(cell.Lat, 'f', -1, 64),
			strconv.FormatFloat(cell.Lon, 'f', -1, 64),
		}
		for _, v := range varCols {
			if val, ok := cell.Values[v]; ok {
				record = append(record, strconv.FormatFloat(val, 'f', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		record = append(record,
			strconv.FormatFloat(cell.RiskScore, 'f', 2, 64),
			string(cell.RiskClass),
			strconv.FormatFloat(cell.DataQuality, 'f', 3, 64),
			strings.Join(cell.Sources, ";"),
		)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("error writing csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
