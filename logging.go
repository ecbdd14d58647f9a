package ldb

import "log"

// Log writes to logger when one is configured.
func Log(logger *log.Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
