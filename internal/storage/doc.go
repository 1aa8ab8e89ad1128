// Package storage publishes finished artifacts to an S3-compatible bucket
// (MinIO, AWS S3) and hands back presigned download links. Publishing is
// optional and only enabled when an endpoint and bucket are configured.
package storage
