package fusion

import "math"

// Weight table for the composite risk score. NO₂ dominates as the primary
// traffic pollutant, ozone and particulates follow, temperature and wind act
// as dispersion factors. Weights of absent variables are excluded and the
// remainder renormalized, so a cell scored from three variables is comparable
// to one scored from five.
var riskWeights = map[string]float64{
	"no2":  0.30,
	"o3":   0.25,
	"pm25": 0.20,
	"temp": 0.10,
	"wind": 0.10,
}

// Fixed normalization ranges. The upper bounds are the concentrations at
// which a variable saturates its contribution: 3e16 molec/cm² NO₂ column,
// 80 ppb O₃, 150 µg/m³ PM2.5. Fixed constants keep scores deterministic
// across grids, unlike normalizing against each grid's own spread.
var riskRanges = map[string]float64{
	"no2":  3e16,
	"o3":   80,
	"pm25": 150,
}

// computeRisk maps a cell's variable values to a score in [0,100]. A cell
// with no scoreable variables gets 0.
func computeRisk(values map[string]float64) float64 {
	var risk, totalWeight float64

	for _, v := range []string{"no2", "o3", "pm25"} {
		val, ok := values[v]
		if !ok {
			continue
		}
		risk += riskWeights[v] * clamp01(val/riskRanges[v])
		totalWeight += riskWeights[v]
	}

	if temp, ok := values["temp"]; ok {
		risk += riskWeights["temp"] * temperatureRisk(temp)
		totalWeight += riskWeights["temp"]
	}

	if wind, ok := values["wind"]; ok {
		risk += riskWeights["wind"] * windRisk(wind)
		totalWeight += riskWeights["wind"]
	}

	if totalWeight == 0 {
		return 0
	}
	score := risk / totalWeight * 100

	// Precipitation washes pollutants out of the air column.
	if rain, ok := values["precip"]; ok {
		switch {
		case rain > 1.0:
			score *= 0.90
		case rain > 0.1:
			score *= 0.95
		}
	}

	return math.Min(100, math.Max(0, score))
}

// temperatureRisk ramps from 0 at 25°C to 1 at 40°C; heat drives the
// photochemical reactions that produce ozone. Kelvin inputs are converted.
func temperatureRisk(temp float64) float64 {
	if temp > 200 {
		temp -= 273.15
	}
	if temp <= 25 {
		return 0
	}
	return clamp01((temp - 25) / 15)
}

// windRisk is inverse: stagnant air below 2 m/s scores 1, dispersion above
// 5 m/s scores 0, linear in between.
func windRisk(wind float64) float64 {
	switch {
	case wind < 2.0:
		return 1.0
	case wind < 5.0:
		return (5.0 - wind) / 3.0
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
