// Package telemetry provides opt-in Sentry error reporting for photofinder.
package telemetry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/aiphotofinder/photofinder/internal/conf"
	"github.com/aiphotofinder/photofinder/internal/errors"
	"github.com/aiphotofinder/photofinder/internal/logging"
)

// flushTimeout bounds the wait for queued events at shutdown
const flushTimeout = 2 * time.Second

var (
	serviceLogger *slog.Logger

	initMu            sync.Mutex
	sentryInitialized bool
)

func init() {
	serviceLogger = logging.ForService("telemetry")
}

// InitSentry initializes Sentry when enabled in settings and routes enhanced
// errors to it. It is a no-op when telemetry is disabled.
func InitSentry(settings *conf.Settings, release string) error {
	if !settings.Sentry.Enabled {
		serviceLogger.Debug("telemetry disabled")
		return nil
	}
	return initWithOptions(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("photofinder@%s", release),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
}

// initWithOptions initializes the SDK and installs the error reporter
func initWithOptions(opts sentry.ClientOptions) error {
	initMu.Lock()
	defer initMu.Unlock()

	if err := sentry.Init(opts); err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	sentryInitialized = true

	serviceLogger.Info("telemetry enabled", "release", opts.Release)
	return nil
}

// IsInitialized reports whether Sentry has been initialized.
func IsInitialized() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return sentryInitialized
}

// Shutdown detaches the error reporter and flushes queued events.
func Shutdown() {
	initMu.Lock()
	defer initMu.Unlock()

	if !sentryInitialized {
		return
	}
	errors.SetTelemetryReporter(nil)
	if !sentry.Flush(flushTimeout) {
		serviceLogger.Warn("timed out flushing telemetry events")
	}
	sentryInitialized = false
}

// applyPrivacyFilters applies privacy filters to a Sentry event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = errors.ScrubMessage(event.Message)

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}
