// Package state defines shared program state.
package state

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gj2kml/config"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// effective conversion settings: configuration values possibly
	// overwritten by command line flags
	Overwrite     bool
	Transliterate bool
	SplitMode     config.SplitMode

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

// Overrides carries conversion settings requested on command line, nil means
// flag was not given.
type Overrides struct {
	Overwrite     *bool
	Transliterate *bool
	SplitMode     *config.SplitMode
}

// ResolveSettings sets effective conversion settings from configuration with
// command line overrides applied. Unknown split mode is reported and the
// configured one stays in effect.
func (e *LocalEnv) ResolveSettings(o Overrides) error {
	doc := &e.Cfg.Document
	e.Overwrite, e.Transliterate, e.SplitMode = doc.Output.Overwrite, doc.Output.Transliterate, doc.Split.Mode

	if o.Overwrite != nil {
		e.Overwrite = *o.Overwrite
	}
	if o.Transliterate != nil {
		e.Transliterate = *o.Transliterate
	}
	if o.SplitMode != nil {
		switch m := *o.SplitMode; m {
		case config.SplitModeInclusive, config.SplitModeDeferred:
			e.SplitMode = m
		default:
			return fmt.Errorf("unknown split mode '%s', using %s", m, e.SplitMode)
		}
	}
	return nil
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
