package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/alarm"
	"github.com/chargectl/chargectl/pkg/battery"
	"github.com/chargectl/chargectl/pkg/charging"
	"github.com/chargectl/chargectl/pkg/events"
	"github.com/chargectl/chargectl/pkg/hal"
	"github.com/chargectl/chargectl/pkg/settings"
	"github.com/chargectl/chargectl/pkg/telemetry"
)

var (
	store  settings.Store
	ctrl   *charging.Controller
	alarms *alarm.Cron
	mon    *battery.Monitor
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/supported", getSupported)
	router.GET("/enabled", getEnabled)
	router.PUT("/enabled", setEnabled)
	router.GET("/mode", getMode)
	router.PUT("/mode", setMode)
	router.GET("/limit", getLimit)
	router.PUT("/limit", setLimit)
	router.GET("/start-time", getStartTime)
	router.PUT("/start-time", setStartTime)
	router.GET("/target-time", getTargetTime)
	router.PUT("/target-time", setTargetTime)
	router.POST("/reset", resetSettings)
	router.POST("/cancel-once", cancelOnce)
	router.GET("/fine-grained", getFineGrained)
	router.GET("/battery", getBattery)
	router.GET("/wake-alarm", getWakeAlarm)
	router.PUT("/wake-alarm", setWakeAlarm)
	router.GET("/dump", getDump)
	router.GET("/version", getVersion)

	return router
}

// Run starts the daemon: settings, hardware, monitors, controller, and
// the HTTP API on a unix socket. It blocks until SIGINT/SIGTERM.
func Run(settingsPath string, unixSocketPath string, powerSupplyRoot string, allowNonRoot bool) error {
	router := setupRoutes()
	hub := events.NewHub()

	var err error
	store, err = settings.NewFile(settingsPath, hub)
	if err != nil {
		logrus.Fatalf("failed to parse settings during startup: %v", err)
	}
	if f, ok := store.(*settings.File); ok {
		logrus.WithFields(f.LogrusFields()).Infof("settings loaded")
	}

	// Receive SIGHUP to reload settings
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := store.Load(); err != nil {
				logrus.Errorf("failed to reload settings: %v", err)
				continue
			}
			logrus.Infof("settings reloaded")
			hub.Publish(events.SettingsChanged, events.SettingsChangedEvent{Key: string(settings.KeyEnabled)})
		}
	}()

	// Open the vendor charging-control handle. Failure is not fatal to
	// the daemon: the API stays up and reports unsupported.
	var dev hal.ChargingControl
	sysDev, err := hal.OpenSysfs(powerSupplyRoot)
	if err != nil {
		logrus.Warnf("charging control unavailable: %v", err)
	} else {
		dev = sysDev
	}

	mon = battery.NewMonitor(hub, 10*time.Second, nil)
	alarms = alarm.NewCron(hub)
	if spec := store.GetString(settings.KeyWakeAlarm); spec != "" {
		if err := alarms.SetSpec(spec); err != nil {
			logrus.Errorf("failed to apply stored wake alarm: %v", err)
		}
	}

	ctrl = charging.NewController(dev, store, hub, mon, alarms, nil)

	var pub telemetry.Publisher
	if broker := store.GetString(settings.KeyMQTTBroker); broker != "" {
		pub, err = telemetry.NewMQTTPublisher(broker)
		if err != nil {
			logrus.Errorf("failed to connect telemetry publisher: %v", err)
		} else {
			telemetry.Relay(hub, pub)
		}
	}

	srv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if store.GetBool(settings.KeyAllowNonRootAccess) || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		if err := os.Chmod(unixSocketPath, 0777); err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	mon.Start()
	ctrl.Start()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	ctrl.Stop()
	mon.Stop()

	if pub != nil {
		if err := pub.Close(); err != nil {
			logrus.Errorf("failed to close telemetry publisher: %v", err)
		}
	}

	if dev != nil {
		// Leave the hardware unthrottled.
		if err := dev.SetChargingEnabled(true); err != nil {
			logrus.Errorf("failed to re-enable charging before exiting: %v", err)
		}
		logrus.Info("closing charging control handle")
		if err := dev.Close(); err != nil {
			logrus.Errorf("failed to close charging control handle: %v", err)
		}
	}

	logrus.Info("exiting")
	return nil
}
