// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package hook

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/JonasGessner/instancehook/internal/config"
	"github.com/JonasGessner/instancehook/internal/plog"
)

// engineSettings is the one-time engine configuration, loaded lazily on the
// first installation.
type engineSettings struct {
	disabled bool
}

var (
	settingsOnce  sync.Once
	engineConfig  engineSettings
	currentLogger atomic.Value // *plog.Logger
)

// settings loads the configuration on first use: a bootstrap logger reads
// the settings, then the process logger is recreated with the configured
// level and error backoff.
func settings() *engineSettings {
	settingsOnce.Do(func() {
		bootstrap := plog.NewLogger(plog.Info, os.Stderr, nil)
		cfg, err := config.New(bootstrap)
		applySettings(bootstrap, cfg, err)
	})
	return &engineConfig
}

func applySettings(bootstrap *plog.Logger, cfg *config.Config, err error) {
	if err != nil {
		bootstrap.Error(err)
		// Keep the bootstrap logger so that later logger() calls return a
		// stable instance instead of allocating a disabled one each time.
		if currentLogger.Load() == nil {
			currentLogger.Store(bootstrap)
		}
		return
	}
	if currentLogger.Load() == nil {
		l := plog.NewLogger(cfg.LogLevel(), os.Stderr, nil)
		currentLogger.Store(&plog.Logger{DebugLevelLogger: plog.WithBackoff(l)})
	}
	engineConfig.disabled = cfg.Disabled()
}

// SetLogger replaces the engine's logger. Passing nil silences the engine.
func SetLogger(l *plog.Logger) {
	if l == nil {
		l = plog.NewLogger(plog.Disabled, os.Stderr, nil)
	}
	currentLogger.Store(l)
}

func logger() *plog.Logger {
	if l, _ := currentLogger.Load().(*plog.Logger); l != nil {
		return l
	}
	settings()
	if l, _ := currentLogger.Load().(*plog.Logger); l != nil {
		return l
	}
	return plog.NewLogger(plog.Disabled, os.Stderr, nil)
}
