package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

// Merra2Adapter reads reanalysis meteorology: 2-meter temperature and the
// U/V wind components, which it folds into a scalar wind speed. MERRA-2 is
// the coarsest source in the set.
type Merra2Adapter struct {
	baseURL string
	client  *httpClient
}

func NewMerra2Adapter(baseURL string, timeout time.Duration) *Merra2Adapter {
	return &Merra2Adapter{
		baseURL: baseURL,
		client:  newHTTPClient("merra2", timeout),
	}
}

func (a *Merra2Adapter) Name() string        { return "merra2" }
func (a *Merra2Adapter) Resolution() float64 { return 0.5 }

type merra2Response struct {
	Points []merra2Point `json:"points"`
}

type merra2Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	T2M       float64 `json:"t2m"` // K
	U2M       float64 `json:"u2m"` // m/s
	V2M       float64 `json:"v2m"` // m/s
	Time      int64   `json:"observed_at"`
}

func (a *Merra2Adapter) Fetch(ctx context.Context, bbox models.BoundingBox, window models.TimeWindow) (models.ReadingBatch, error) {
	url := fmt.Sprintf("%s/meteorology?west=%g&south=%g&east=%g&north=%g&start=%d&end=%d",
		a.baseURL, bbox.West, bbox.South, bbox.East, bbox.North,
		window.Start.Unix(), window.End.Unix())

	resp, err := a.client.get(ctx, url)
	if err != nil {
		return models.ReadingBatch{}, fmt.Errorf("%w: merra2: %v", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	var data merra2Response
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return models.ReadingBatch{}, fmt.Errorf("%w: merra2: decoding response: %v", models.ErrSourceUnavailable, err)
	}

	readings := make([]models.Reading, 0, 2*len(data.Points))
	for _, p := range data.Points {
		ts := time.Unix(p.Time, 0).UTC()
		if p.T2M > 0 {
			readings = append(readings, models.Reading{
				SourceID:  a.Name(),
				Variable:  models.VarTemp,
				Timestamp: ts,
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				Value:     p.T2M,
				Unit:      "K",
			})
		}
		wind := math.Sqrt(p.U2M*p.U2M + p.V2M*p.V2M)
		readings = append(readings, models.Reading{
			SourceID:  a.Name(),
			Variable:  models.VarWind,
			Timestamp: ts,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Value:     wind,
			Unit:      "m/s",
		})
	}

	return models.ReadingBatch{SourceID: a.Name(), Readings: readings}, nil
}
