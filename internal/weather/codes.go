package weather

// unknownDescription is returned for codes the table does not cover,
// and when the provider omits the code entirely.
const unknownDescription = "Unknown"

// wmoDescriptions maps WMO weather interpretation codes (as used by
// Open-Meteo) to human-readable descriptions.
var wmoDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snowfall",
	73: "Moderate snowfall",
	75: "Heavy snowfall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// DescribeCode translates a WMO weather code into a description.
// Unknown and absent codes map to "Unknown"; this is never an error.
func DescribeCode(code *int) string {
	if code == nil {
		return unknownDescription
	}
	if desc, ok := wmoDescriptions[*code]; ok {
		return desc
	}
	return unknownDescription
}

// CodeSeverity ranks a weather code into a coarse severity class, used to
// judge how implausible a condition transition is. Higher is more severe.
func CodeSeverity(code int) int {
	switch {
	case code == 0:
		return 0
	case code >= 1 && code <= 3:
		return 1
	case code == 45 || code == 48:
		return 2
	case code >= 51 && code <= 57:
		return 3
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return 4
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return 4
	case code == 95:
		return 5
	case code == 96 || code == 99:
		return 6
	default:
		return 0
	}
}
