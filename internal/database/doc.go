// Package database provides SQLite storage for trimsizer.
//
// It records one row per encode session in the encode_sessions table,
// successful or failed, with the target, the outcome (CRF or bitrate,
// attempts, fallback, sizes, warnings) and where the artifact was
// published. A small metadata table holds housekeeping timestamps.
//
// The database uses WAL mode and creates its schema on open.
package database
