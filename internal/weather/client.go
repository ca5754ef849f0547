package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

const openMeteoDefaultURL = "https://api.open-meteo.com/v1/forecast"

const (
	hourlyTimeLayout = "2006-01-02T15:04"
	dailyTimeLayout  = "2006-01-02"
)

// Config controls per-attempt timeout and the retry policy for transient
// provider failures.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	return c
}

// Client fetches current conditions and forecast data from Open-Meteo.
// Transient failures are retried with exponential backoff behind a circuit
// breaker; every failure surfaces as a *FetchError.
type Client struct {
	baseURL string
	client  *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
}

// NewClient constructs a Client against the production Open-Meteo API.
func NewClient(cfg Config) *Client {
	return NewClientWithURL(openMeteoDefaultURL, cfg)
}

// NewClientWithURL constructs a Client pointing at a custom base URL (for tests).
func NewClientWithURL(baseURL string, cfg Config) *Client {
	cfg = cfg.withDefaults()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "open-meteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		breaker: cb,
	}
}

// Fetch issues one provider request per attempt, retrying transient failures
// (timeout, connection reset, 429, 5xx) up to MaxRetries times with
// exponential backoff. 4xx responses and malformed bodies are permanent and
// never retried.
func (c *Client) Fetch(ctx context.Context, coords Coordinates, units Units) (*Reading, error) {
	endpoint := c.buildURL(coords, units)

	backoff := c.cfg.InitialBackoff
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Kind: Transient, Message: err.Error()}
		}

		reading, ferr, retryable := c.attempt(ctx, endpoint, units)
		if ferr == nil {
			return reading, nil
		}
		if !retryable || attempt >= c.cfg.MaxRetries {
			return nil, ferr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &FetchError{Kind: Transient, Message: ctx.Err().Error()}
		case <-timer.C:
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

// attempt runs a single request through the circuit breaker. The returned
// bool reports whether the failure is worth retrying: permanent errors and an
// open breaker are not.
func (c *Client) attempt(ctx context.Context, endpoint string, units Units) (*Reading, *FetchError, bool) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if reqErr != nil {
			return nil, &FetchError{Kind: Permanent, Message: fmt.Sprintf("creating request: %v", reqErr)}
		}

		resp, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, &FetchError{Kind: Transient, Message: fmt.Sprintf("requesting provider: %v", doErr)}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &FetchError{Kind: Transient, Message: fmt.Sprintf("provider returned status %d", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &FetchError{Kind: Permanent, Message: fmt.Sprintf("provider returned status %d", resp.StatusCode)}
		}

		var raw openMeteoResponse
		if decErr := json.NewDecoder(resp.Body).Decode(&raw); decErr != nil {
			return nil, &FetchError{Kind: Permanent, Message: fmt.Sprintf("decoding provider response: %v", decErr)}
		}

		return raw.toReading(units), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &FetchError{Kind: Transient, Message: "provider circuit open: " + err.Error()}, false
		}
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe, fe.Kind == Transient
		}
		return nil, &FetchError{Kind: Transient, Message: err.Error()}, true
	}

	reading, ok := result.(*Reading)
	if !ok {
		return nil, &FetchError{Kind: Permanent, Message: "unexpected result type from circuit breaker"}, false
	}
	return reading, nil, false
}

func (c *Client) buildURL(coords Coordinates, units Units) string {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	values.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,precipitation,weather_code,wind_speed_10m")
	values.Set("hourly", "temperature_2m,precipitation,weather_code")
	values.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,weather_code")
	values.Set("timezone", "auto")

	if units == UnitsImperial {
		values.Set("temperature_unit", "fahrenheit")
		values.Set("wind_speed_unit", "mph")
		values.Set("precipitation_unit", "inch")
	}

	return c.baseURL + "?" + values.Encode()
}

type openMeteoResponse struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Temperature   float64 `json:"temperature_2m"`
		Apparent      float64 `json:"apparent_temperature"`
		Humidity      int     `json:"relative_humidity_2m"`
		Precipitation float64 `json:"precipitation"`
		WeatherCode   *int    `json:"weather_code"`
		WindSpeed     float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		Precipitation []float64 `json:"precipitation"`
		WeatherCode   []int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"daily"`
}

func (r *openMeteoResponse) toReading(units Units) *Reading {
	reading := &Reading{
		Current: Current{
			Temperature:         r.Current.Temperature,
			ApparentTemperature: r.Current.Apparent,
			Humidity:            r.Current.Humidity,
			Precipitation:       r.Current.Precipitation,
			WeatherCode:         r.Current.WeatherCode,
			Description:         DescribeCode(r.Current.WeatherCode),
			WindSpeed:           r.Current.WindSpeed,
		},
		Units:    units,
		Timezone: r.Timezone,
	}

	for i, ts := range r.Hourly.Time {
		t, err := time.Parse(hourlyTimeLayout, ts)
		if err != nil {
			continue
		}
		p := HourlyPoint{Time: t}
		if i < len(r.Hourly.Temperature) {
			p.Temperature = r.Hourly.Temperature[i]
		}
		if i < len(r.Hourly.Precipitation) {
			p.Precipitation = r.Hourly.Precipitation[i]
		}
		if i < len(r.Hourly.WeatherCode) {
			p.WeatherCode = r.Hourly.WeatherCode[i]
		}
		reading.Hourly = append(reading.Hourly, p)
	}

	for i, ts := range r.Daily.Time {
		t, err := time.Parse(dailyTimeLayout, ts)
		if err != nil {
			continue
		}
		p := DailyPoint{Date: t}
		if i < len(r.Daily.TemperatureMax) {
			p.TemperatureMax = r.Daily.TemperatureMax[i]
		}
		if i < len(r.Daily.TemperatureMin) {
			p.TemperatureMin = r.Daily.TemperatureMin[i]
		}
		if i < len(r.Daily.PrecipitationSum) {
			p.PrecipitationSum = r.Daily.PrecipitationSum[i]
		}
		if i < len(r.Daily.WeatherCode) {
			p.WeatherCode = r.Daily.WeatherCode[i]
		}
		reading.Daily = append(reading.Daily, p)
	}

	return reading
}
