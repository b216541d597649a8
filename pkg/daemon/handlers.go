package daemon

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/charging"
	"github.com/chargectl/chargectl/pkg/settings"
	"github.com/chargectl/chargectl/pkg/version"
)

func requireSupported(c *gin.Context) bool {
	if ctrl.IsSupported() {
		return true
	}
	err := fmt.Errorf("charging control is not supported on this device")
	c.IndentedJSON(http.StatusNotImplemented, err.Error())
	_ = c.AbortWithError(http.StatusNotImplemented, err)
	return false
}

func getSupported(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.IsSupported())
}

func getEnabled(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.GetEnabled())
}

func setEnabled(c *gin.Context) {
	if !requireSupported(c) {
		return
	}

	var e bool
	if err := c.BindJSON(&e); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if !ctrl.SetEnabled(e) {
		err := fmt.Errorf("failed to set charging control enabled to %t", e)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set charging control enabled to %t", e)
	c.IndentedJSON(http.StatusCreated, "ok")
}

func getMode(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, int(ctrl.GetMode()))
}

func setMode(c *gin.Context) {
	if !requireSupported(c) {
		return
	}

	var m int
	if err := c.BindJSON(&m); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	mode := charging.Mode(m)
	if !ctrl.SetMode(mode) {
		err := fmt.Errorf("charging control mode %s is not supported by any provider", mode)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	logrus.Infof("set charging control mode to %s", mode)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("charging control mode set to %s", mode))
}

func getLimit(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.GetLimit())
}

func setLimit(c *gin.Context) {
	if !requireSupported(c) {
		return
	}

	var l int
	if err := c.BindJSON(&l); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if !ctrl.SetLimit(l) {
		err := fmt.Errorf("limit must be between 0 and 100, got %d", l)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	logrus.Infof("set charging limit to %d", l)
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set charging limit to %d%%", l))
}

func getStartTime(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.GetStartTime())
}

func setStartTime(c *gin.Context) {
	if !requireSupported(c) {
		return
	}

	var t int
	if err := c.BindJSON(&t); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if !ctrl.SetStartTime(t) {
		err := fmt.Errorf("start time must be between 0 and 86400 seconds of day, got %d", t)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	logrus.Infof("set charging window start time to %d", t)
	c.IndentedJSON(http.StatusCreated, "ok")
}

func getTargetTime(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.GetTargetTime())
}

func setTargetTime(c *gin.Context) {
	if !requireSupported(c) {
		return
	}

	var t int
	if err := c.BindJSON(&t); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if !ctrl.SetTargetTime(t) {
		err := fmt.Errorf("target time must be between 0 and 86400 seconds of day, got %d", t)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	logrus.Infof("set charging window target time to %d", t)
	c.IndentedJSON(http.StatusCreated, "ok")
}

func resetSettings(c *gin.Context) {
	if !requireSupported(c) {
		return
	}

	if !ctrl.Reset() {
		err := fmt.Errorf("failed to reset charging control settings")
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("charging control settings reset to defaults")
	c.IndentedJSON(http.StatusCreated, "charging control settings reset to defaults")
}

func cancelOnce(c *gin.Context) {
	if !requireSupported(c) {
		return
	}

	ctrl.SetChargingCancelledOnce()
	logrus.Infof("charging control cancelled for this session")
	c.IndentedJSON(http.StatusCreated, "charging control cancelled until power is disconnected")
}

func getFineGrained(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, ctrl.AllowFineGrainedSettings())
}

func getBattery(c *gin.Context) {
	snap, err := mon.Refresh()
	if err != nil {
		logrus.Errorf("getBattery failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"status":  string(snap.Status),
		"plugged": snap.Plugged,
		"percent": snap.Percent,
	})
}

func getWakeAlarm(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, alarms.Spec())
}

func setWakeAlarm(c *gin.Context) {
	var spec string
	if err := c.BindJSON(&spec); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := alarms.SetSpec(spec); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := store.PutString(settings.KeyWakeAlarm, spec); err != nil {
		logrus.Errorf("failed to persist wake alarm: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, "ok")
}

func getDump(c *gin.Context) {
	var buf bytes.Buffer
	ctrl.Dump(&buf)
	c.String(http.StatusOK, buf.String())
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
