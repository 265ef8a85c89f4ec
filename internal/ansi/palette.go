package ansi

import "fmt"

type rgb struct {
	r, g, b int
}

var namedColors = [8]string{"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white"}

var brightColors = [8]string{"brightBlack", "brightRed", "brightGreen", "brightYellow", "brightBlue", "brightMagenta", "brightCyan", "brightWhite"}

// VGA-style values for the 16 base colours, used when a named colour must be
// expressed as CSS.
var baseRGB = [16]rgb{
	{0, 0, 0},
	{170, 0, 0},
	{0, 170, 0},
	{170, 85, 0},
	{0, 0, 170},
	{170, 0, 170},
	{0, 170, 170},
	{170, 170, 170},
	{85, 85, 85},
	{255, 85, 85},
	{85, 255, 85},
	{255, 255, 85},
	{85, 85, 255},
	{255, 85, 255},
	{85, 255, 255},
	{255, 255, 255},
}

var cssByName = func() map[string]rgb {
	out := make(map[string]rgb, 16)
	for i, name := range namedColors {
		out[name] = baseRGB[i]
	}
	for i, name := range brightColors {
		out[name] = baseRGB[i+8]
	}
	return out
}()

// paletteColor maps an xterm 256-colour index to a style value.
// 0-15 use the named colours, 16-231 the 6x6x6 cube and 232-255 the
// grayscale ramp. ok is false for indexes outside 0-255.
func paletteColor(index int) (string, bool) {
	switch {
	case index < 0 || index > 255:
		return "", false
	case index < 8:
		return namedColors[index], true
	case index < 16:
		return brightColors[index-8], true
	case index < 232:
		idx := index - 16
		return rgbString(idx/36*51, (idx/6)%6*51, idx%6*51), true
	default:
		gray := (index-232)*10 + 8
		return rgbString(gray, gray, gray), true
	}
}

func rgbString(r, g, b int) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", clamp(r), clamp(g), clamp(b))
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// CSSColor converts a span colour into a CSS colour value. Named colours,
// including the bright variants, become rgb() triples; other values pass
// through unchanged.
func CSSColor(value string) string {
	if c, ok := cssByName[value]; ok {
		return rgbString(c.r, c.g, c.b)
	}
	return value
}
