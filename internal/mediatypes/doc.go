// Package mediatypes holds the file-type tables shared by the encoder,
// the HTTP layer and the CLI.
//
// It has no dependencies beyond the standard library so any package can
// import it without creating a cycle.
//
// Source uploads are checked against VideoExtensions:
//
//	if !mediatypes.IsVideoFile(header.Filename) {
//	    // reject
//	}
//
// Artifacts are tagged with an ArtifactKind (KindVideo for MP4,
// KindImageSequence for GIF) and served with GetMimeType.
package mediatypes
