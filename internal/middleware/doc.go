// Package middleware provides HTTP middleware for the trimsizer server.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with the encode session ID
//   - Prometheus request metrics labelled by route template
//   - gzip compression for JSON and UI assets; artifacts stream uncompressed
//   - Cross-origin isolation headers for the browser-side encoder
package middleware
