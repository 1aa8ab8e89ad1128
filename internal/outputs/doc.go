// Package outputs stores finished artifacts between the end of an encode
// session and their download.
//
// Each session owns root/<session-id>/, holding the artifact under its
// download name (trimmed_video.mp4 or trimmed_video.gif) and, once
// requested, a cached poster.jpg. [Store.Expire] removes session directories
// older than the retention period; the server janitor calls it periodically.
// File operations go through the filesystem package so a stale NFS handle on
// DATA_DIR is retried.
package outputs
