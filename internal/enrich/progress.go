package enrich

import "go.uber.org/zap"

// LogProgress returns a ProgressFunc that reports completion counts through
// the global logger.
func LogProgress() ProgressFunc {
	return func(completed, total int) {
		zap.L().Info("record complete",
			zap.Int("completed", completed),
			zap.Int("total", total),
		)
	}
}
