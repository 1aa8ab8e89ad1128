// Package media inspects and previews encoder artifacts with the imaging
// library.
//
// VerifyPalette checks the palette.png written by the first GIF pass before
// the second pass is allowed to run. Poster renders a small JPEG of the
// first frame of a finished artifact for the session history.
package media
