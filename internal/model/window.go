package model

// WindowOption is a selectable window length.
type WindowOption struct {
	Label   string
	Seconds float64
}

// DefaultWindowLength matches the backend default for long recordings.
const DefaultWindowLength = 300

// WindowOptions is the fixed catalog of window lengths offered to the user.
var WindowOptions = []WindowOption{
	{Label: "15 s", Seconds: 15},
	{Label: "1 min", Seconds: 60},
	{Label: "3 min", Seconds: 180},
	{Label: "5 min", Seconds: 300},
	{Label: "10 min", Seconds: 600},
	{Label: "20 min", Seconds: 1200},
}

// WindowLabel returns the catalog label for seconds, or a plain seconds label
// when the length is not in the catalog.
func WindowLabel(seconds float64) string {
	for _, opt := range WindowOptions {
		if opt.Seconds == seconds {
			return opt.Label
		}
	}
	return formatSeconds(seconds)
}

// IsWindowOption reports whether seconds is a catalog value.
func IsWindowOption(seconds float64) bool {
	for _, opt := range WindowOptions {
		if opt.Seconds == seconds {
			return true
		}
	}
	return false
}

// NextWindowOption returns the smallest catalog length greater than seconds.
// The largest option is returned unchanged.
func NextWindowOption(seconds float64) float64 {
	for _, opt := range WindowOptions {
		if opt.Seconds > seconds {
			return opt.Seconds
		}
	}
	return WindowOptions[len(WindowOptions)-1].Seconds
}

// PrevWindowOption returns the largest catalog length smaller than seconds.
// The smallest option is returned unchanged.
func PrevWindowOption(seconds float64) float64 {
	for i := len(WindowOptions) - 1; i >= 0; i-- {
		if WindowOptions[i].Seconds < seconds {
			return WindowOptions[i].Seconds
		}
	}
	return WindowOptions[0].Seconds
}
