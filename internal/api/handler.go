package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Deiviidsito/backend-nasa/internal/archive"
	"github.com/Deiviidsito/backend-nasa/internal/compare"
	"github.com/Deiviidsito/backend-nasa/internal/config"
	"github.com/Deiviidsito/backend-nasa/internal/models"
	"github.com/Deiviidsito/backend-nasa/internal/observability"
	"github.com/Deiviidsito/backend-nasa/internal/query"
	"github.com/Deiviidsito/backend-nasa/internal/store"
)

type Handler struct {
	cities     []config.City
	queries    *query.Service
	comparator *compare.Comparator
	store      *store.Store
	archive    archive.GridArchive
	metrics    *observability.Metrics
}

func NewHandler(cities []config.City, queries *query.Service, comparator *compare.Comparator,
	st *store.Store, ar archive.GridArchive, metrics *observability.Metrics) *Handler {
	return &Handler{
		cities:     cities,
		queries:    queries,
		comparator: comparator,
		store:      st,
		archive:    ar,
		metrics:    metrics,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/cities", h.getCities)
	r.GET("/api/cities/:city_id/latest", h.getLatest)
	r.GET("/api/cities/:city_id/airquality", h.getAirQuality)
	r.GET("/api/cities/:city_id/alerts", h.getAlerts)
	r.GET("/api/cities/:city_id/history", h.getHistory)
	r.GET("/api/compare", h.getCompare)
	r.GET("/health", h.health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{})))
	}
}

func (h *Handler) getCities(c *gin.Context) {
	type cityStatus struct {
		config.City
		Ready bool `json:"ready"`
	}

	out := make([]cityStatus, 0, len(h.cities))
	for _, city := range h.cities {
		out = append(out, cityStatus{City: city, Ready: h.store.Ready(city.ID)})
	}
	c.JSON(http.StatusOK, gin.H{"cities": out})
}

func (h *Handler) getLatest(c *gin.Context) {
	cityID := c.Param("city_id")

	params, err := parseQueryParams(c)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.queries.Query(cityID, params)
	if err != nil {
		writeError(c, err)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
		c.JSON(http.StatusOK, result)
	case "geojson":
		c.Header("Content-Type", "application/geo+json")
		c.JSON(http.StatusOK, query.ToGeoJSON(result))
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename="+cityID+".csv")
		c.Status(http.StatusOK)
		if err := query.WriteCSV(c.Writer, result); err != nil {
			_ = c.Error(err)
		}
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "unknown format, expected json, geojson or csv",
		})
	}
}

func (h *Handler) getAirQuality(c *gin.Context) {
	cityID := c.Param("city_id")

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "lat and lon query parameters are required",
		})
		return
	}

	result, err := h.queries.Nearest(cityID, lat, lon)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getAlerts(c *gin.Context) {
	cityID := c.Param("city_id")

	threshold := models.ThresholdBad
	if t := c.Query("threshold"); t != "" {
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid threshold"})
			return
		}
		threshold = parsed
	}

	result, err := h.queries.Query(cityID, query.Params{MinRisk: &threshold})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"city_id":      result.CityID,
		"generated_at": result.GeneratedAt,
		"threshold":    threshold,
		"alert_count":  len(result.Cells),
		"cells":        result.Cells,
	})
}

func (h *Handler) getHistory(c *gin.Context) {
	cityID := c.Param("city_id")

	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "archive disabled"})
		return
	}
	if !h.knownCity(cityID) {
		writeError(c, models.ErrCityNotFound)
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	generations, err := h.archive.ListGenerations(c.Request.Context(), cityID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"city_id": cityID, "generations": generations})
}

func (h *Handler) knownCity(cityID string) bool {
	for _, city := range h.cities {
		if city.ID == cityID {
			return true
		}
	}
	return false
}

func (h *Handler) getCompare(c *gin.Context) {
	raw := c.Query("cities")
	if raw == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "cities query parameter is required",
		})
		return
	}

	result, err := h.comparator.Compare(strings.Split(raw, ","))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) health(c *gin.Context) {
	ready := 0
	for _, city := range h.cities {
		if h.store.Ready(city.ID) {
			ready++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"cities":       len(h.cities),
		"cities_ready": ready,
	})
}

func parseQueryParams(c *gin.Context) (query.Params, error) {
	var p query.Params

	if raw := c.Query("bbox"); raw != "" {
		parts := strings.Split(raw, ",")
		if len(parts) != 4 {
			return p, models.ErrInvalidQuery
		}
		vals := make([]float64, 4)
		for i, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return p, models.ErrInvalidQuery
			}
			vals[i] = v
		}
		p.BBox = &models.BoundingBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	}

	if raw := c.Query("min_risk"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, models.ErrInvalidQuery
		}
		p.MinRisk = &v
	}

	if raw := c.Query("min_quality"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, models.ErrInvalidQuery
		}
		p.MinQuality = &v
	}

	if raw := c.Query("pollutants"); raw != "" {
		p.Pollutants = strings.Split(raw, ",")
	}

	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, models.ErrInvalidQuery
		}
		p.Limit = v
	}

	return p, nil
}

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrCityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrGridNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrOutOfBounds), errors.Is(err, models.ErrInvalidQuery):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
