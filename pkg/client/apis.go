package client

import (
	"encoding/json"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

func (c *Client) GetSupported() (bool, error) {
	ret, err := c.Get("/supported")
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to check charging control support")
	}
	return parseBoolResponse(ret)
}

func (c *Client) GetEnabled() (bool, error) {
	ret, err := c.Get("/enabled")
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to get charging control enabled")
	}
	return parseBoolResponse(ret)
}

func (c *Client) SetEnabled(enabled bool) (string, error) {
	return c.Put("/enabled", strconv.FormatBool(enabled))
}

func (c *Client) GetMode() (int, error) {
	return c.getInt("/mode", "charging control mode")
}

func (c *Client) SetMode(mode int) (string, error) {
	return c.Put("/mode", strconv.Itoa(mode))
}

func (c *Client) GetLimit() (int, error) {
	return c.getInt("/limit", "charge limit")
}

func (c *Client) SetLimit(limit int) (string, error) {
	return c.Put("/limit", strconv.Itoa(limit))
}

func (c *Client) GetStartTime() (int, error) {
	return c.getInt("/start-time", "charge window start time")
}

func (c *Client) SetStartTime(secondOfDay int) (string, error) {
	return c.Put("/start-time", strconv.Itoa(secondOfDay))
}

func (c *Client) GetTargetTime() (int, error) {
	return c.getInt("/target-time", "charge window target time")
}

func (c *Client) SetTargetTime(secondOfDay int) (string, error) {
	return c.Put("/target-time", strconv.Itoa(secondOfDay))
}

func (c *Client) Reset() (string, error) {
	return c.Post("/reset", "")
}

func (c *Client) CancelOnce() (string, error) {
	return c.Post("/cancel-once", "")
}

func (c *Client) GetFineGrained() (bool, error) {
	ret, err := c.Get("/fine-grained")
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to check fine-grained support")
	}
	return parseBoolResponse(ret)
}

// BatteryStatus mirrors the daemon's /battery response.
type BatteryStatus struct {
	Status  string  `json:"status"`
	Plugged bool    `json:"plugged"`
	Percent float64 `json:"percent"`
}

func (c *Client) GetBattery() (*BatteryStatus, error) {
	ret, err := c.Get("/battery")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get battery status")
	}
	var st BatteryStatus
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal battery status")
	}
	return &st, nil
}

func (c *Client) GetWakeAlarm() (string, error) {
	ret, err := c.Get("/wake-alarm")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get wake alarm")
	}
	var spec string
	if err := json.Unmarshal([]byte(ret), &spec); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal wake alarm")
	}
	return spec, nil
}

func (c *Client) SetWakeAlarm(spec string) (string, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	return c.Put("/wake-alarm", string(payload))
}

func (c *Client) GetDump() (string, error) {
	return c.Get("/dump")
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get daemon version")
	}
	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal daemon version")
	}
	return v, nil
}

func (c *Client) getInt(path, what string) (int, error) {
	ret, err := c.Get(path)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	v, err := strconv.Atoi(strings.TrimSpace(ret))
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return v, nil
}

func parseBoolResponse(ret string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(ret))
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to unmarshal boolean response %q", ret)
	}
	return b, nil
}
