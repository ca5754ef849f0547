package weather

import "time"

// Units selects the unit system requested from the provider.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// Coordinates identifies a point on the globe.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Current holds the current conditions portion of a reading.
type Current struct {
	Temperature         float64 `json:"temperature"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	Humidity            int     `json:"humidity"`
	Precipitation       float64 `json:"precipitation"`
	WeatherCode         *int    `json:"weather_code,omitempty"`
	Description         string  `json:"description"`
	WindSpeed           float64 `json:"wind_speed"`
}

// HourlyPoint is one entry of the hourly forecast, ordered by time ascending.
type HourlyPoint struct {
	Time          time.Time `json:"time"`
	Temperature   float64   `json:"temperature"`
	Precipitation float64   `json:"precipitation"`
	WeatherCode   int       `json:"weather_code"`
}

// DailyPoint is one entry of the daily forecast, ordered by date ascending.
type DailyPoint struct {
	Date             time.Time `json:"date"`
	TemperatureMax   float64   `json:"temperature_max"`
	TemperatureMin   float64   `json:"temperature_min"`
	PrecipitationSum float64   `json:"precipitation_sum"`
	WeatherCode      int       `json:"weather_code"`
}

// Reading is a single structured current+forecast result from the provider.
type Reading struct {
	Current  Current       `json:"current"`
	Hourly   []HourlyPoint `json:"hourly,omitempty"`
	Daily    []DailyPoint  `json:"daily,omitempty"`
	Units    Units         `json:"units"`
	Timezone string        `json:"timezone"`
}
