/*
Package encoding turns a trimmed clip into an artifact that fits a size
budget.

An [EncodingTarget] names the output format, the trim range, a scale factor
and either a target size or a GIF frame rate. The [Orchestrator] runs one
session at a time:

  - Size search (MP4): [Searcher] bisects CRF values between 18 and 35 in at
    most four encodes and keeps only the smallest fitting artifact. When
    nothing fits, [Searcher.Fallback] re-encodes at 80% resolution with
    96 kb/s audio.
  - Constant bitrate (MP4): [ComputeVideoBitrateKbps] derives a video
    bitrate from the target size and the clip duration, and a single
    encode runs.
  - GIF: [PalettePipeline] generates a palette in a first pass and applies
    it in a second. The second pass never runs without a verified palette.

Encoder invocations go through the [Encoder] interface; the transcoder
package provides the ffmpeg implementation. Working files live in a
scratch.Arena that is removed when the session ends, on success or failure.
Failures are returned as [*Error] values whose Kind matches the sentinel
errors with errors.Is.
*/
package encoding
