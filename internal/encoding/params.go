package encoding

import (
	"fmt"
	"strconv"
)

// Codec parameter sets handed to the encoder. The encoder adds input,
// trim, filter and output arguments around them.

func cbrParams(kbps int) []string {
	rate := strconv.Itoa(kbps) + "k"
	return []string{
		"-c:v", "libx264",
		"-preset", "medium",
		"-b:v", rate,
		"-minrate", rate,
		"-maxrate", rate,
		"-bufsize", rate,
		"-c:a", "aac",
		"-b:a", strconv.Itoa(AudioBitrateKbps) + "k",
		"-movflags", "+faststart",
	}
}

func crfParams(crf, audioKbps int) []string {
	return []string{
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", strconv.Itoa(crf),
		"-c:a", "aac",
		"-b:a", strconv.Itoa(audioKbps) + "k",
		"-movflags", "+faststart",
	}
}

func scaleFilter(width, height int) string {
	return fmt.Sprintf("scale=%d:%d", width, height)
}

// PaletteGenFilter builds the pass 1 filter chain.
func PaletteGenFilter(width, height int) string {
	return fmt.Sprintf("scale=%d:%d:flags=lanczos,palettegen=max_colors=%d", width, height, PaletteMaxColors)
}

// PaletteUseFilter builds the pass 2 filter graph. Input 0 is the clip and
// input 1 the palette.
func PaletteUseFilter(width, height, fps int) string {
	return fmt.Sprintf("[0:v]scale=%d:%d:flags=lanczos,fps=%d[v];[v][1:v]paletteuse=dither=bayer:bayer_scale=3",
		width, height, fps)
}
