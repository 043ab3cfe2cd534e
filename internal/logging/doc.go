// Package logging provides the leveled logger used across media-prep.
//
// Levels, from most to least verbose:
//   - DEBUG: per-task preparation details
//   - INFO: lifecycle messages (queue start/stop, configuration)
//   - WARN: recoverable problems (probe failures, cleanup errors)
//   - ERROR: failures that drop work
//   - FATAL: startup errors that terminate the process
//
// The level comes from MEDIAPREP_LOG_LEVEL, then LOG_LEVEL. DEBUG=true
// forces debug output. Tests and embedders may call SetLevel directly.
package logging
