// Package infrastructure provides reusable infrastructure components for
// wiring the interview pipeline into an Fx application.
package infrastructure

import (
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxLoggerAdapter routes Fx's internal lifecycle events through the
// application's Zap logger so container wiring shows up alongside
// pipeline logs.
type FxLoggerAdapter struct {
	logger *zap.SugaredLogger
}

// NewFxLoggerAdapter creates an fxevent.Logger backed by the given logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxLoggerAdapter{logger: logger.Sugar()}
}

// LogEvent implements fxevent.Logger.
func (a *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		a.logger.Debugf("HOOK OnStart executing: %s", e.FunctionName)
	case *fxevent.OnStartExecuted:
		a.hookResult("OnStart", e.FunctionName, e.Err)
	case *fxevent.OnStopExecuting:
		a.logger.Debugf("HOOK OnStop executing: %s", e.FunctionName)
	case *fxevent.OnStopExecuted:
		a.hookResult("OnStop", e.FunctionName, e.Err)
	case *fxevent.Provided:
		if e.Err != nil {
			a.logger.Errorf("PROVIDE failed: %v", e.Err)
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			a.logger.Errorf("INVOKE failed: %s, error: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Stopping:
		a.logger.Infof("STOPPING: %s", e.Signal)
	case *fxevent.Started:
		if e.Err != nil {
			a.logger.Errorf("START failed: %v", e.Err)
		} else {
			a.logger.Info("STARTED")
		}
	case *fxevent.Stopped:
		if e.Err != nil {
			a.logger.Errorf("STOP failed: %v", e.Err)
		}
	case *fxevent.RollingBack:
		a.logger.Errorf("ROLLING BACK: %v", e.StartErr)
	}
}

func (a *FxLoggerAdapter) hookResult(hook, function string, err error) {
	if err != nil {
		a.logger.Errorf("HOOK %s failed: %s, error: %v", hook, function, err)
		return
	}
	a.logger.Debugf("HOOK %s executed: %s", hook, function)
}
