// Package logging provides structured logging for the ComfoAir driver.
//
// This package wraps zap with convenience functions for the logging
// patterns used throughout the driver: connection lifecycle events, frame
// traffic with hex dumps, and raw byte buffers when debugging framing.
//
// Logging is silent unless COMFOAIR_LOG_LEVEL is set, so library consumers
// and CLI commands get no unexpected output by default:
//
//	COMFOAIR_LOG_LEVEL=debug comfoair-ctl monitor
//
// All functions are safe for concurrent use; zap handles synchronization.
package logging
