// Package conflict decides whether a freshly fetched weather reading
// materially disagrees with the most recent stored snapshot for the same
// location. Detection is advisory: it annotates snapshots, it never blocks
// persistence.
package conflict

import (
	"fmt"
	"strings"
	"time"

	"github.com/neexbeast/weathersync/internal/weather"
)

// Thresholds configures what counts as an implausible change between two
// consecutive observations. Zero values fall back to the documented defaults.
type Thresholds struct {
	// TempJump is the largest plausible absolute temperature delta within
	// PlausibleGap. Default 10 degrees.
	TempJump float64
	// PrecipJump is the largest plausible precipitation delta within
	// PlausibleGap. Default 25 mm.
	PrecipJump float64
	// CodeSeverityJump is the smallest weather-code severity-class move
	// flagged as implausible (e.g. clear sky straight to a violent
	// thunderstorm). Default 3 classes.
	CodeSeverityJump int
	// PlausibleGap bounds how old the previous observation may be for the
	// comparison to be meaningful; older deltas are never conflicts.
	// Default 3h.
	PlausibleGap time.Duration
}

// DefaultThresholds returns the documented default tolerances.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TempJump:         10,
		PrecipJump:       25,
		CodeSeverityJump: 3,
		PlausibleGap:     3 * time.Hour,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.TempJump <= 0 {
		t.TempJump = d.TempJump
	}
	if t.PrecipJump <= 0 {
		t.PrecipJump = d.PrecipJump
	}
	if t.CodeSeverityJump <= 0 {
		t.CodeSeverityJump = d.CodeSeverityJump
	}
	if t.PlausibleGap <= 0 {
		t.PlausibleGap = d.PlausibleGap
	}
	return t
}

// Observation is the subset of a reading the detector compares.
type Observation struct {
	FetchedAt     time.Time
	Temperature   float64
	Precipitation float64
	WeatherCode   *int
}

// Detector flags implausible changes between consecutive observations.
type Detector struct {
	thresholds Thresholds
}

// NewDetector constructs a Detector; zero-valued threshold fields take the
// defaults from DefaultThresholds.
func NewDetector(t Thresholds) *Detector {
	return &Detector{thresholds: t.withDefaults()}
}

// Detect compares the candidate against the previous observation. A nil
// previous observation never conflicts: the first reading for a location is
// clean by definition. The returned description names every field that
// diverged and by how much.
func (d *Detector) Detect(prev *Observation, candidate Observation) (bool, string) {
	if prev == nil {
		return false, ""
	}

	elapsed := candidate.FetchedAt.Sub(prev.FetchedAt)
	if elapsed < 0 || elapsed > d.thresholds.PlausibleGap {
		return false, ""
	}

	var reasons []string

	if delta := abs(candidate.Temperature - prev.Temperature); delta > d.thresholds.TempJump {
		reasons = append(reasons, fmt.Sprintf(
			"temperature jumped %.1f (from %.1f to %.1f) within %s",
			delta, prev.Temperature, candidate.Temperature, elapsed.Round(time.Second)))
	}

	if delta := abs(candidate.Precipitation - prev.Precipitation); delta > d.thresholds.PrecipJump {
		reasons = append(reasons, fmt.Sprintf(
			"precipitation jumped %.1f (from %.1f to %.1f) within %s",
			delta, prev.Precipitation, candidate.Precipitation, elapsed.Round(time.Second)))
	}

	if prev.WeatherCode != nil && candidate.WeatherCode != nil {
		prevSev := weather.CodeSeverity(*prev.WeatherCode)
		candSev := weather.CodeSeverity(*candidate.WeatherCode)
		if jump := absInt(candSev - prevSev); jump >= d.thresholds.CodeSeverityJump {
			reasons = append(reasons, fmt.Sprintf(
				"weather code moved from %q to %q within %s",
				weather.DescribeCode(prev.WeatherCode),
				weather.DescribeCode(candidate.WeatherCode),
				elapsed.Round(time.Second)))
		}
	}

	if len(reasons) == 0 {
		return false, ""
	}
	return true, strings.Join(reasons, "; ")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
