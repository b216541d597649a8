// Package settings is the persistent key-value store for charging
// control configuration. Writes are persisted immediately and announced
// on the event hub; consumers hold one subscription for the whole
// namespace and filter by key.
package settings

// Key names a persisted setting.
type Key string

const (
	KeyEnabled    Key = "charging_control_enabled"
	KeyMode       Key = "charging_control_mode"
	KeyLimit      Key = "charging_control_limit"
	KeyStartTime  Key = "charging_control_start_time"
	KeyTargetTime Key = "charging_control_target_time"

	// Daemon-side settings outside the charging-control namespace.
	KeyWakeAlarm          Key = "wake_alarm"
	KeyMQTTBroker         Key = "mqtt_broker"
	KeyAllowNonRootAccess Key = "allow_non_root_access"
)

// Defaults are the first-boot values, also what Reset restores.
type Defaults struct {
	Enabled    bool
	Mode       int
	Limit      int
	StartTime  int // seconds of day
	TargetTime int // seconds of day
}

// Store is dumb storage: no validation beyond type, callers own range
// checks. Missing keys read as their default.
type Store interface {
	GetBool(k Key) bool
	PutBool(k Key, v bool) error
	GetInt(k Key) int
	PutInt(k Key, v int) error
	GetString(k Key) string
	PutString(k Key, v string) error

	Defaults() Defaults

	// Load reads the settings from the source.
	Load() error
	// Save saves the settings to the source.
	Save() error
}
