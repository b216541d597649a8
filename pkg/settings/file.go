package settings

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/events"
)

var defaultSettings = Defaults{
	Enabled:    false,
	Mode:       1, // automatic
	Limit:      80,
	StartTime:  22 * 60 * 60, // 22:00
	TargetTime: 6 * 60 * 60,  // 06:00
}

var _ Store = &File{}

// File is a JSON-file-backed Store. Unset fields fall back to the
// package defaults, so a missing or empty file is a valid first boot.
type File struct {
	c        *RawSettings
	mu       *sync.RWMutex
	filepath string
	hub      *events.Hub
}

// RawSettings is the on-disk shape. Pointer fields distinguish "unset"
// from zero values.
type RawSettings struct {
	Enabled            *bool   `json:"enabled,omitempty"`
	Mode               *int    `json:"mode,omitempty"`
	Limit              *int    `json:"limit,omitempty"`
	StartTime          *int    `json:"startTime,omitempty"`
	TargetTime         *int    `json:"targetTime,omitempty"`
	WakeAlarm          *string `json:"wakeAlarm,omitempty"`
	MQTTBroker         *string `json:"mqttBroker,omitempty"`
	AllowNonRootAccess *bool   `json:"allowNonRootAccess,omitempty"`
}

// NewFile loads settings from settingsPath. Changes are announced on
// hub, which may be nil in tests that do not care about notifications.
func NewFile(settingsPath string, hub *events.Hub) (*File, error) {
	f := &File{
		filepath: settingsPath,
		mu:       &sync.RWMutex{},
		hub:      hub,
	}
	if err := f.Load(); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFileFromRaw wraps an in-memory RawSettings, used by tests.
func NewFileFromRaw(c *RawSettings, hub *events.Hub) *File {
	if c == nil {
		c = &RawSettings{}
	}
	return &File{c: c, mu: &sync.RWMutex{}, hub: hub}
}

func (f *File) Defaults() Defaults { return defaultSettings }

func (f *File) GetBool(k Key) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	switch k {
	case KeyEnabled:
		if f.c.Enabled != nil {
			return *f.c.Enabled
		}
		return defaultSettings.Enabled
	case KeyAllowNonRootAccess:
		if f.c.AllowNonRootAccess != nil {
			return *f.c.AllowNonRootAccess
		}
		return false
	}
	return false
}

func (f *File) GetInt(k Key) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	switch k {
	case KeyMode:
		if f.c.Mode != nil {
			return *f.c.Mode
		}
		return defaultSettings.Mode
	case KeyLimit:
		if f.c.Limit != nil {
			return *f.c.Limit
		}
		return defaultSettings.Limit
	case KeyStartTime:
		if f.c.StartTime != nil {
			return *f.c.StartTime
		}
		return defaultSettings.StartTime
	case KeyTargetTime:
		if f.c.TargetTime != nil {
			return *f.c.TargetTime
		}
		return defaultSettings.TargetTime
	}
	return 0
}

func (f *File) GetString(k Key) string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	switch k {
	case KeyWakeAlarm:
		if f.c.WakeAlarm != nil {
			return *f.c.WakeAlarm
		}
	case KeyMQTTBroker:
		if f.c.MQTTBroker != nil {
			return *f.c.MQTTBroker
		}
	}
	return ""
}

func (f *File) PutBool(k Key, v bool) error {
	f.mu.Lock()
	switch k {
	case KeyEnabled:
		f.c.Enabled = &v
	case KeyAllowNonRootAccess:
		f.c.AllowNonRootAccess = &v
	default:
		f.mu.Unlock()
		return pkgerrors.Errorf("unknown bool setting %q", k)
	}
	f.mu.Unlock()

	return f.persist(k)
}

func (f *File) PutInt(k Key, v int) error {
	f.mu.Lock()
	switch k {
	case KeyMode:
		f.c.Mode = &v
	case KeyLimit:
		f.c.Limit = &v
	case KeyStartTime:
		f.c.StartTime = &v
	case KeyTargetTime:
		f.c.TargetTime = &v
	default:
		f.mu.Unlock()
		return pkgerrors.Errorf("unknown int setting %q", k)
	}
	f.mu.Unlock()

	return f.persist(k)
}

func (f *File) PutString(k Key, v string) error {
	f.mu.Lock()
	switch k {
	case KeyWakeAlarm:
		f.c.WakeAlarm = &v
	case KeyMQTTBroker:
		f.c.MQTTBroker = &v
	default:
		f.mu.Unlock()
		return pkgerrors.Errorf("unknown string setting %q", k)
	}
	f.mu.Unlock()

	return f.persist(k)
}

func (f *File) persist(k Key) error {
	if err := f.Save(); err != nil {
		return err
	}
	f.hub.Publish(events.SettingsChanged, events.SettingsChangedEvent{Key: string(k)})
	return nil
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.filepath == "" {
		if f.c == nil {
			f.c = &RawSettings{}
		}
		return nil
	}

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// First boot: run on defaults. Do not make f.c a nil.
			f.c = &RawSettings{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawSettings{}
		return nil
	}

	raw := RawSettings{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal settings from file %s", f.filepath)
	}
	f.c = &raw

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.filepath == "" {
		return nil
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f.c); err != nil {
		return pkgerrors.Wrapf(err, "failed to encode settings to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"enabled":    f.GetBool(KeyEnabled),
		"mode":       f.GetInt(KeyMode),
		"limit":      f.GetInt(KeyLimit),
		"startTime":  f.GetInt(KeyStartTime),
		"targetTime": f.GetInt(KeyTargetTime),
		"wakeAlarm":  f.GetString(KeyWakeAlarm),
	}
}
