package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

// ImergAdapter reads precipitation rates. Rain acts as a washout factor in
// the risk score rather than a pollutant.
type ImergAdapter struct {
	baseURL string
	client  *httpClient
}

func NewImergAdapter(baseURL string, timeout time.Duration) *ImergAdapter {
	return &ImergAdapter{
		baseURL: baseURL,
		client:  newHTTPClient("imerg", timeout),
	}
}

func (a *ImergAdapter) Name() string        { return "imerg" }
func (a *ImergAdapter) Resolution() float64 { return 0.1 }

type imergResponse struct {
	Points []imergPoint `json:"points"`
}

type imergPoint struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Precipitation float64 `json:"precipitation"` // mm/hr
	Time          int64   `json:"observed_at"`
}

func (a *ImergAdapter) Fetch(ctx context.Context, bbox models.BoundingBox, window models.TimeWindow) (models.ReadingBatch, error) {
	url := fmt.Sprintf("%s/precipitation?west=%g&south=%g&east=%g&north=%g&start=%d&end=%d",
		a.baseURL, bbox.West, bbox.South, bbox.East, bbox.North,
		window.Start.Unix(), window.End.Unix())

	resp, err := a.client.get(ctx, url)
	if err != nil {
		return models.ReadingBatch{}, fmt.Errorf("%w: imerg: %v", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	var data imergResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return models.ReadingBatch{}, fmt.Errorf("%w: imerg: decoding response: %v", models.ErrSourceUnavailable, err)
	}

	readings := make([]models.Reading, 0, len(data.Points))
	for _, p := range data.Points {
		readings = append(readings, models.Reading{
			SourceID:  a.Name(),
			Variable:  models.VarPrecip,
			Timestamp: time.Unix(p.Time, 0).UTC(),
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Value:     p.Precipitation,
			Unit:      "mm/hr",
		})
	}

	return models.ReadingBatch{SourceID: a.Name(), Readings: readings}, nil
}
