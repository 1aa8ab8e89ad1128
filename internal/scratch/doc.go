// Package scratch manages the working files of encode sessions.
//
// Each session opens an Arena, a directory named by the session id under
// the scratch root. Encoder inputs and outputs are addressed by Handle
// instead of bare file names, and Arena.Close removes everything the
// session wrote, whether it succeeded or not. The final artifact leaves the
// arena through Promote.
//
// Manager.Purge clears arenas left behind by a crashed process; the server
// calls it at startup and from the scratch clear endpoint.
package scratch
