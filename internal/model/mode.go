package model

// Mode selects which day a digest announces.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeToday    Mode = "today"
	ModeTomorrow Mode = "tomorrow"
)

// Header returns the first line of a digest, or "" for ModeNone.
func (m Mode) Header() string {
	switch m {
	case ModeToday:
		return "Heute entfällt:\n"
	case ModeTomorrow:
		return "Morgen entfällt:\n"
	default:
		return ""
	}
}
