// Package transcoder runs FFmpeg for trimsizer.
//
// It supports:
//   - Single encode invocations built from encoding.EncodeRequest values
//   - Two-input filter graphs for palette based GIF output
//   - Clip metadata extraction through ffprobe (duration, size, codec, frame rate)
//   - Still frame extraction for session posters
//
// FFmpeg and ffprobe must be installed. A missing binary is reported as
// encoding.ErrEncoderUnavailable so callers can tell it apart from a failed
// encode.
package transcoder
