package pipeline

import "github.com/tphakala/mfcc-go/internal/logger"

// GetLogger returns the pipeline logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("pipeline")
}
