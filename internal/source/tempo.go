package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

// TempoAdapter reads trace-gas column densities (NO₂ and O₃) from the TEMPO
// satellite gateway. TEMPO pixels are coarser than the city grids, so its
// readings are spread over neighbouring cells during fusion.
type TempoAdapter struct {
	baseURL string
	client  *httpClient
}

func NewTempoAdapter(baseURL string, timeout time.Duration) *TempoAdapter {
	return &TempoAdapter{
		baseURL: baseURL,
		client:  newHTTPClient("tempo", timeout),
	}
}

func (a *TempoAdapter) Name() string        { return "tempo" }
func (a *TempoAdapter) Resolution() float64 { return 0.1 }

type tempoResponse struct {
	Points []tempoPoint `json:"points"`
}

type tempoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	NO2Column float64 `json:"no2_column"`  // molec/cm²
	O3Column  float64 `json:"o3_column"`   // ppb equivalent
	Time      int64   `json:"observed_at"` // unix seconds
}

func (a *TempoAdapter) Fetch(ctx context.Context, bbox models.BoundingBox, window models.TimeWindow) (models.ReadingBatch, error) {
	url := fmt.Sprintf("%s/columns?west=%g&south=%g&east=%g&north=%g&start=%d&end=%d",
		a.baseURL, bbox.West, bbox.South, bbox.East, bbox.North,
		window.Start.Unix(), window.End.Unix())

	resp, err := a.client.get(ctx, url)
	if err != nil {
		return models.ReadingBatch{}, fmt.Errorf("%w: tempo: %v", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	var data tempoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return models.ReadingBatch{}, fmt.Errorf("%w: tempo: decoding response: %v", models.ErrSourceUnavailable, err)
	}

	readings := make([]models.Reading, 0, 2*len(data.Points))
	for _, p := range data.Points {
		ts := time.Unix(p.Time, 0).UTC()
		if p.NO2Column > 0 {
			readings = append(readings, models.Reading{
				SourceID:  a.Name(),
				Variable:  models.VarNO2,
				Timestamp: ts,
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				Value:     p.NO2Column,
				Unit:      "molec/cm2",
			})
		}
		if p.O3Column > 0 {
			readings = append(readings, models.Reading{
				SourceID:  a.Name(),
				Variable:  models.VarO3,
				Timestamp: ts,
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				Value:     p.O3Column,
				Unit:      "ppb",
			})
		}
	}

	return models.ReadingBatch{SourceID: a.Name(), Readings: readings}, nil
}
