package config

import "github.com/Deiviidsito/backend-nasa/internal/models"

// City is one monitored urban area inside the TEMPO observation domain.
type City struct {
	ID         string             `json:"city_id"`
	Name       string             `json:"name"`
	BBox       models.BoundingBox `json:"bbox"`
	Resolution float64            `json:"resolution"`
	Population int                `json:"population"`
	Timezone   string             `json:"timezone"`
}

// Cities is the built-in city table. All cities sit inside TEMPO's North
// American field of view and share the 0.03 degree grid resolution.
var Cities = []City{
	{ID: "los_angeles", Name: "Los Angeles, CA",
		BBox:       models.BoundingBox{West: -118.7, South: 33.6, East: -117.8, North: 34.4},
		Resolution: 0.03, Population: 3971883, Timezone: "America/Los_Angeles"},
	{ID: "new_york", Name: "New York, NY",
		BBox:       models.BoundingBox{West: -74.3, South: 40.4, East: -73.7, North: 41.0},
		Resolution: 0.03, Population: 8336817, Timezone: "America/New_York"},
	{ID: "chicago", Name: "Chicago, IL",
		BBox:       models.BoundingBox{West: -88.0, South: 41.6, East: -87.5, North: 42.1},
		Resolution: 0.03, Population: 2693976, Timezone: "America/Chicago"},
	{ID: "houston", Name: "Houston, TX",
		BBox:       models.BoundingBox{West: -95.8, South: 29.5, East: -95.0, North: 30.1},
		Resolution: 0.03, Population: 2320268, Timezone: "America/Chicago"},
	{ID: "phoenix", Name: "Phoenix, AZ",
		BBox:       models.BoundingBox{West: -112.3, South: 33.2, East: -111.7, North: 33.8},
		Resolution: 0.03, Population: 1608139, Timezone: "America/Phoenix"},
	{ID: "seattle", Name: "Seattle, WA",
		BBox:       models.BoundingBox{West: -122.5, South: 47.4, East: -122.1, North: 47.8},
		Resolution: 0.03, Population: 753675, Timezone: "America/Los_Angeles"},
	{ID: "miami", Name: "Miami, FL",
		BBox:       models.BoundingBox{West: -80.4, South: 25.6, East: -80.0, North: 26.0},
		Resolution: 0.03, Population: 442241, Timezone: "America/New_York"},
	{ID: "denver", Name: "Denver, CO",
		BBox:       models.BoundingBox{West: -105.2, South: 39.5, East: -104.7, North: 40.0},
		Resolution: 0.03, Population: 715522, Timezone: "America/Denver"},
	{ID: "boston", Name: "Boston, MA",
		BBox:       models.BoundingBox{West: -71.3, South: 42.1, East: -70.8, North: 42.6},
		Resolution: 0.03, Population: 685094, Timezone: "America/New_York"},
	{ID: "atlanta", Name: "Atlanta, GA",
		BBox:       models.BoundingBox{West: -84.7, South: 33.4, East: -84.1, North: 33.9},
		Resolution: 0.03, Population: 486290, Timezone: "America/New_York"},
}

// CityByID looks a city up in the built-in table.
func CityByID(id string) (City, bool) {
	for _, c := range Cities {
		if c.ID == id {
			return c, true
		}
	}
	return City{}, false
}

// CityIDs returns the IDs of every configured city, in table order.
func CityIDs() []string {
	ids := make([]string, len(Cities))
	for i, c := range Cities {
		ids[i] = c.ID
	}
	return ids
}

// CityNames maps city ID to display name.
func CityNames() map[string]string {
	names := make(map[string]string, len(Cities))
	for _, c := range Cities {
		names[c.ID] = c.Name
	}
	return names
}
