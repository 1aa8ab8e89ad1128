// Command trimctl runs the trimsizer encoder from the command line.
//
// Usage:
//
//	trimctl <command> [flags]
//
// Commands:
//
//	encode   Trim a clip and encode it to an MP4 size budget or a
//	         palette GIF. Progress is drawn as a bar on a terminal and
//	         printed line by line otherwise.
//
//	probe    Print duration, dimensions and codec of a clip.
//
//	bitrate  Print the constant video bitrate for --size-mb and
//	         --duration.
//
//	history  List the sessions in the history database, or remove old
//	         ones with --prune.
//
// Environment:
//
//	DATA_DIR     - Directory holding trimsizer.db (same as the server)
//	FFMPEG_PATH  - ffmpeg binary (default: ffmpeg)
//	FFPROBE_PATH - ffprobe binary (default: ffprobe)
//
// Sessions run by trimctl are recorded in the same history as the server,
// so they show up in GET /api/sessions.
package main
