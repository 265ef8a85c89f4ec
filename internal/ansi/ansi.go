// Package ansi converts text containing ANSI SGR escape sequences into styled
// spans. The conversion is pure and safe for concurrent use.
package ansi

import (
	"html"
	"strconv"
	"strings"

	"pkt.systems/nextvm/schema"
)

const esc = 0x1b

// Parse scans input left to right and returns the visible text split into
// spans. Each span carries the style that was current when its run of text
// started. Escape sequences never appear in the output, consecutive escapes
// coalesce into one style update and no empty span is emitted. Input without
// escapes yields a single span with an empty style.
func Parse(input string) []schema.StyledSpan {
	if input == "" {
		return nil
	}
	var (
		spans []schema.StyledSpan
		style schema.SpanStyle
		text  strings.Builder
	)
	flush := func() {
		if text.Len() == 0 {
			return
		}
		spans = append(spans, schema.StyledSpan{Text: text.String(), Style: style})
		text.Reset()
	}
	for i := 0; i < len(input); {
		if input[i] != esc {
			next := strings.IndexByte(input[i:], esc)
			if next < 0 {
				text.WriteString(input[i:])
				break
			}
			text.WriteString(input[i : i+next])
			i += next
			continue
		}
		if i+1 >= len(input) || input[i+1] != '[' {
			// Lone ESC: drop it and keep the following text visible.
			i++
			continue
		}
		end, final, params := scanCSI(input, i+2)
		flush()
		if final == 'm' {
			style = applySGR(style, params)
		}
		i = end
	}
	flush()
	return spans
}

// Strip returns the visible text of input with all escape sequences removed.
func Strip(input string) string {
	spans := Parse(input)
	if len(spans) == 1 {
		return spans[0].Text
	}
	var b strings.Builder
	for _, span := range spans {
		b.WriteString(span.Text)
	}
	return b.String()
}

// HTML renders input as escaped HTML. Styled runs are wrapped in span
// elements with inline CSS colours.
func HTML(input string) string {
	return SpansHTML(Parse(input))
}

// SpansHTML renders already parsed spans as escaped HTML.
func SpansHTML(spans []schema.StyledSpan) string {
	var b strings.Builder
	for _, span := range spans {
		text := html.EscapeString(span.Text)
		if span.Style.IsZero() {
			b.WriteString(text)
			continue
		}
		b.WriteString(`<span style="`)
		b.WriteString(html.EscapeString(styleCSS(span.Style)))
		b.WriteString(`">`)
		b.WriteString(text)
		b.WriteString("</span>")
	}
	return b.String()
}

func styleCSS(style schema.SpanStyle) string {
	parts := make([]string, 0, 2)
	if style.Color != "" {
		parts = append(parts, "color: "+CSSColor(style.Color))
	}
	if style.BackgroundColor != "" {
		parts = append(parts, "background-color: "+CSSColor(style.BackgroundColor))
	}
	return strings.Join(parts, "; ")
}

// scanCSI reads a control sequence starting after "ESC[". It returns the
// index just past the final byte, the final byte and the parameter bytes.
// An unterminated sequence consumes the rest of the input with final 0.
func scanCSI(input string, start int) (int, byte, string) {
	i := start
	for i < len(input) && input[i] >= 0x30 && input[i] <= 0x3f {
		i++
	}
	params := input[start:i]
	for i < len(input) && input[i] >= 0x20 && input[i] <= 0x2f {
		i++
	}
	if i < len(input) && input[i] >= 0x40 && input[i] <= 0x7e {
		return i + 1, input[i], params
	}
	return len(input), 0, params
}

// applySGR returns style updated by an SGR parameter list. Unknown codes
// leave the style unchanged.
func applySGR(style schema.SpanStyle, params string) schema.SpanStyle {
	if params == "" {
		return schema.SpanStyle{}
	}
	tokens := strings.Split(params, ";")
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		if strings.Contains(token, ":") {
			style = applyExtendedSubparams(style, token)
			continue
		}
		code, ok := parseParam(token)
		if !ok {
			continue
		}
		switch {
		case code == 0:
			style = schema.SpanStyle{}
		case code >= 30 && code <= 37:
			style.Color = namedColors[code-30]
		case code == 39:
			style.Color = ""
		case code >= 40 && code <= 47:
			style.BackgroundColor = namedColors[code-40]
		case code == 49:
			style.BackgroundColor = ""
		case code >= 90 && code <= 97:
			style.Color = brightColors[code-90]
		case code >= 100 && code <= 107:
			style.BackgroundColor = brightColors[code-100]
		case code == 38 || code == 48:
			value, consumed, ok := extendedColor(tokens[i+1:])
			i += consumed
			if !ok {
				continue
			}
			if code == 38 {
				style.Color = value
			} else {
				style.BackgroundColor = value
			}
		}
	}
	return style
}

// extendedColor decodes the arguments following 38 or 48 in the semicolon
// form: "5;N" or "2;R;G;B". It returns how many tokens were consumed.
func extendedColor(args []string) (string, int, bool) {
	if len(args) == 0 {
		return "", 0, false
	}
	mode, ok := parseParam(args[0])
	if !ok {
		return "", 1, false
	}
	switch mode {
	case 5:
		if len(args) < 2 {
			return "", len(args), false
		}
		index, ok := parseParam(args[1])
		if !ok {
			return "", 2, false
		}
		value, ok := paletteColor(index)
		return value, 2, ok
	case 2:
		if len(args) < 4 {
			return "", len(args), false
		}
		r, okR := parseParam(args[1])
		g, okG := parseParam(args[2])
		b, okB := parseParam(args[3])
		if !okR || !okG || !okB {
			return "", 4, false
		}
		return rgbString(r, g, b), 4, true
	default:
		return "", 1, false
	}
}

// applyExtendedSubparams handles the colon form: 38:5:N, 38:2:R:G:B and
// 38:2:CS:R:G:B (colour space id, often empty).
func applyExtendedSubparams(style schema.SpanStyle, token string) schema.SpanStyle {
	subs := strings.Split(token, ":")
	code, ok := parseParam(subs[0])
	if !ok || (code != 38 && code != 48) || len(subs) < 2 {
		return style
	}
	var value string
	switch subs[1] {
	case "5":
		if len(subs) < 3 {
			return style
		}
		index, ok := parseParam(subs[2])
		if !ok {
			return style
		}
		value, ok = paletteColor(index)
		if !ok {
			return style
		}
	case "2":
		components := subs[2:]
		if len(components) >= 4 {
			components = components[1:]
		}
		if len(components) < 3 {
			return style
		}
		r, okR := parseParam(components[0])
		g, okG := parseParam(components[1])
		b, okB := parseParam(components[2])
		if !okR || !okG || !okB {
			return style
		}
		value = rgbString(r, g, b)
	default:
		return style
	}
	if code == 38 {
		style.Color = value
	} else {
		style.BackgroundColor = value
	}
	return style
}

// parseParam parses a numeric SGR parameter. Empty parameters count as 0.
func parseParam(token string) (int, bool) {
	if token == "" {
		return 0, true
	}
	value, err := strconv.Atoi(token)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
