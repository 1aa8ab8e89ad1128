// Package logging provides the leveled logger used across trimsizer.
//
// Levels, lowest first:
//   - DEBUG: encoder command lines, per-attempt sizes, scratch bookkeeping
//   - INFO: session lifecycle and startup banner
//   - WARN: low bitrates, oversized outputs, cleanup failures
//   - ERROR: failed sessions and I/O errors
//   - FATAL: startup errors that terminate the process
//
// The level comes from DEBUG=true or LOG_LEVEL, and can be overridden at
// runtime with SetLevel.
package logging
