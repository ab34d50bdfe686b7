package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

// OpenAQAdapter reads ground-station measurements. Stations are point data,
// so each reading lands on the single nearest grid cell.
type OpenAQAdapter struct {
	baseURL string
	apiKey  string
	client  *httpClient
}

func NewOpenAQAdapter(baseURL, apiKey string, timeout time.Duration) *OpenAQAdapter {
	return &OpenAQAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  newHTTPClient("openaq", timeout),
	}
}

func (a *OpenAQAdapter) Name() string        { return "openaq" }
func (a *OpenAQAdapter) Resolution() float64 { return 0 }

type openaqResponse struct {
	Results []openaqResult `json:"results"`
}

type openaqResult struct {
	Parameter   string            `json:"parameter"`
	Value       float64           `json:"value"`
	Unit        string            `json:"unit"`
	Coordinates openaqCoordinates `json:"coordinates"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

type openaqCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ground-station parameters we fuse; everything else the API returns is
// dropped here rather than carried as dead weight through the engine.
var openaqParameters = map[string]string{
	"pm25": models.VarPM25,
	"no2":  models.VarNO2,
	"o3":   models.VarO3,
}

func (a *OpenAQAdapter) Fetch(ctx context.Context, bbox models.BoundingBox, window models.TimeWindow) (models.ReadingBatch, error) {
	url := fmt.Sprintf("%s/latest?bbox=%g,%g,%g,%g&limit=1000",
		a.baseURL, bbox.West, bbox.South, bbox.East, bbox.North)
	if a.apiKey != "" {
		url += "&api_key=" + a.apiKey
	}

	resp, err := a.client.get(ctx, url)
	if err != nil {
		return models.ReadingBatch{}, fmt.Errorf("%w: openaq: %v", models.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	var data openaqResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return models.ReadingBatch{}, fmt.Errorf("%w: openaq: decoding response: %v", models.ErrSourceUnavailable, err)
	}

	readings := make([]models.Reading, 0, len(data.Results))
	for _, r := range data.Results {
		variable, ok := openaqParameters[strings.ToLower(r.Parameter)]
		if !ok {
			continue
		}
		readings = append(readings, models.Reading{
			SourceID:  a.Name(),
			Variable:  variable,
			Timestamp: r.LastUpdated.UTC(),
			Latitude:  r.Coordinates.Latitude,
			Longitude: r.Coordinates.Longitude,
			Value:     r.Value,
			Unit:      r.Unit,
		})
	}

	return models.ReadingBatch{SourceID: a.Name(), Readings: readings}, nil
}
