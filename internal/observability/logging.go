package observability

import (
	"go.uber.org/zap"
)

// NewLogger builds the process-wide structured logger. Development mode is
// selected by the DEBUG environment variable being set.
func NewLogger(service string, debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar().With("service", service), nil
}
