package sysinfo

// Level classifies a reading against warn and alert thresholds.
type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelAlert
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelAlert:
		return "alert"
	}
	return "ok"
}

// Classify returns LevelAlert at or above alert, LevelWarn at or above
// warn, otherwise LevelOK.
func Classify(value float64, warn, alert int) Level {
	switch {
	case value >= float64(alert):
		return LevelAlert
	case value >= float64(warn):
		return LevelWarn
	}
	return LevelOK
}
