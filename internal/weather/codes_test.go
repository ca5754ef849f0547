package weather_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neexbeast/weathersync/internal/weather"
)

func intPtr(v int) *int { return &v }

func TestDescribeCode(t *testing.T) {
	assert.Equal(t, "Clear sky", weather.DescribeCode(intPtr(0)))
	assert.Equal(t, "Thunderstorm", weather.DescribeCode(intPtr(95)))
	assert.Equal(t, "Heavy rain", weather.DescribeCode(intPtr(65)))
}

func TestDescribeCode_UnknownCode(t *testing.T) {
	assert.Equal(t, "Unknown", weather.DescribeCode(intPtr(999)))
}

func TestDescribeCode_AbsentCode(t *testing.T) {
	assert.Equal(t, "Unknown", weather.DescribeCode(nil))
}

func TestCodeSeverity_Ordering(t *testing.T) {
	clear := weather.CodeSeverity(0)
	cloudy := weather.CodeSeverity(3)
	rain := weather.CodeSeverity(63)
	storm := weather.CodeSeverity(99)

	assert.Less(t, clear, cloudy)
	assert.Less(t, cloudy, rain)
	assert.Less(t, rain, storm)
	assert.Equal(t, 6, storm-clear)
}
