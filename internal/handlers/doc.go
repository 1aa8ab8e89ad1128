// Package handlers provides the HTTP handlers for the trimsizer API.
//
// It includes handlers for:
//   - Encoding an uploaded clip to a size budget (streamed back or
//     published to object storage)
//   - Probing clips and previewing CBR bitrates
//   - Session history, stored artifacts and poster previews
//   - Progress polling and scratch cleanup
//   - Health, readiness, version and metrics endpoints
package handlers
