package events

import "encoding/json"

// Event name constants. Everything the controller reacts to arrives
// through one of these topics.
const (
	SettingsChanged   = "settings.changed"
	BatteryChanged    = "battery.changed"
	PowerConnected    = "power.connected"
	PowerDisconnected = "power.disconnected"
	BatteryFull       = "battery.full"
	AlarmChanged      = "alarm.changed"
)

// Event is a generic broadcast from one of the daemon's sources.
type Event struct {
	Name string
	Data json.RawMessage
}

// SettingsChangedEvent is the typed payload for settings.changed.
type SettingsChangedEvent struct {
	Key string `json:"key"`
}

// BatteryChangedEvent is the typed payload for battery.changed.
type BatteryChangedEvent struct {
	Status  string  `json:"status"`
	Plugged bool    `json:"plugged"`
	Percent float64 `json:"percent"`
}

// DecodeAs decodes the event payload into the caller-specified type T.
// If Data is empty, it returns the zero value of T with a nil error.
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
