package notifier

import "strings"

// Level orders notifications by importance, mirroring logging levels.
// Each channel carries a minimum level; anything below it is filtered.
type Level int

const (
	LevelDebug    Level = 10
	LevelInfo     Level = 20
	LevelSuccess  Level = 25
	LevelWarning  Level = 30
	LevelError    Level = 40
	LevelCritical Level = 50
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelSuccess:
		return "SUCCESS"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "INFO"
	}
}

// LevelFromString maps a configuration string to a level. Lookup is
// case-insensitive; unrecognized strings fall back to INFO.
func LevelFromString(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "success":
		return LevelSuccess
	case "warning":
		return LevelWarning
	case "error":
		return LevelError
	case "critical":
		return LevelCritical
	default:
		return LevelInfo
	}
}
