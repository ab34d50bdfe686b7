package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

var losAngeles = models.BoundingBox{West: -118.7, South: 33.6, East: -117.8, North: 34.4}

func TestDefine_LosAngeles(t *testing.T) {
	layout, err := Define(losAngeles, 0.03)
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	// ceil(0.8/0.03) x ceil(0.9/0.03)
	if layout.Rows != 27 {
		t.Errorf("expected 27 rows, got %d", layout.Rows)
	}
	if layout.Cols != 30 {
		t.Errorf("expected 30 cols, got %d", layout.Cols)
	}
	if layout.CellCount() != 27*30 {
		t.Errorf("expected %d cells, got %d", 27*30, layout.CellCount())
	}
}

func TestDefine_Degenerate(t *testing.T) {
	cases := []struct {
		name       string
		bbox       models.BoundingBox
		resolution float64
	}{
		{"zero resolution", losAngeles, 0},
		{"negative resolution", losAngeles, -0.03},
		{"inverted box", models.BoundingBox{West: -117.8, South: 34.4, East: -118.7, North: 33.6}, 0.03},
		{"empty box", models.BoundingBox{West: -118.7, South: 33.6, East: -118.7, North: 33.6}, 0.03},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Define(tc.bbox, tc.resolution)
			if !errors.Is(err, models.ErrInvalidGridDefinition) {
				t.Errorf("expected ErrInvalidGridDefinition, got %v", err)
			}
		})
	}
}

func TestCenter(t *testing.T) {
	layout, err := Define(losAngeles, 0.03)
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	lat, lon := layout.Center(0, 0)
	if math.Abs(lat-(33.6+0.015)) > 1e-9 {
		t.Errorf("expected center lat %.4f, got %.4f", 33.6+0.015, lat)
	}
	if math.Abs(lon-(-118.7+0.015)) > 1e-9 {
		t.Errorf("expected center lon %.4f, got %.4f", -118.7+0.015, lon)
	}

	// Every cell center stays inside the bounding box.
	for r := 0; r < layout.Rows; r++ {
		for c := 0; c < layout.Cols; c++ {
			lat, lon := layout.Center(r, c)
			if !layout.BBox.Contains(lat, lon) {
				t.Fatalf("center of (%d,%d) outside bbox: %.4f,%.4f", r, c, lat, lon)
			}
		}
	}
}

func TestNearest_MinimizesDistance(t *testing.T) {
	layout, err := Define(losAngeles, 0.03)
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	row, col, ok := layout.Nearest(34.05, -118.25)
	if !ok {
		t.Fatal("expected point inside bbox")
	}

	lat, lon := layout.Center(row, col)
	if math.Abs(lat-34.05) > 0.03 || math.Abs(lon-(-118.25)) > 0.03 {
		t.Errorf("nearest center %.4f,%.4f more than one cell away from query point", lat, lon)
	}

	// Brute-force check: no other cell center is strictly closer.
	best := math.Inf(1)
	for r := 0; r < layout.Rows; r++ {
		for c := 0; c < layout.Cols; c++ {
			clat, clon := layout.Center(r, c)
			d := (clat-34.05)*(clat-34.05) + (clon+118.25)*(clon+118.25)
			if d < best {
				best = d
			}
		}
	}
	d := (lat-34.05)*(lat-34.05) + (lon+118.25)*(lon+118.25)
	if d > best+1e-12 {
		t.Errorf("Nearest returned a non-minimal cell: %g > %g", d, best)
	}
}

func TestNearest_TieBreaksToLowerIndex(t *testing.T) {
	layout, err := Define(models.BoundingBox{West: 0, South: 0, East: 1, North: 1}, 0.5)
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	// (0.5, 0.5) is equidistant between all four cell centers.
	row, col, ok := layout.Nearest(0.5, 0.5)
	if !ok {
		t.Fatal("expected point inside bbox")
	}
	if row != 0 || col != 0 {
		t.Errorf("expected tie to resolve to (0,0), got (%d,%d)", row, col)
	}
}

func TestNearest_OutOfBounds(t *testing.T) {
	layout, err := Define(losAngeles, 0.03)
	if err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	if _, _, ok := layout.Nearest(40.0, -118.25); ok {
		t.Error("expected point north of bbox to be rejected")
	}
	if _, _, ok := layout.Nearest(34.05, -120.0); ok {
		t.Error("expected point west of bbox to be rejected")
	}
}

func TestHaversine(t *testing.T) {
	// LA to NYC is roughly 3940 km.
	d := Haversine(34.05, -118.25, 40.71, -74.01)
	if d < 3900 || d > 4000 {
		t.Errorf("expected ~3940 km, got %.1f", d)
	}

	if d := Haversine(34.05, -118.25, 34.05, -118.25); d != 0 {
		t.Errorf("expected zero distance, got %g", d)
	}
}
