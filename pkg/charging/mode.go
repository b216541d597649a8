package charging

// Mode is the user-selected charging-control strategy.
type Mode int

const (
	ModeNone   Mode = 0 // no strategy selected
	ModeAuto   Mode = 1 // finish charging right before the next wake alarm
	ModeManual Mode = 2 // finish charging inside a configured time-of-day window
	ModeLimit  Mode = 3 // keep charge at or below a percentage ceiling
)

func (m Mode) Valid() bool { return m >= ModeNone && m <= ModeLimit }

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	case ModeLimit:
		return "limit"
	}
	return "invalid"
}
