package command

import (
	"strings"

	"pkt.systems/nextvm/schema"
)

// ShowImage is a parsed showimage invocation.
type ShowImage struct {
	URL   string
	Style map[string]string
}

// ParseShowImage parses the arguments of a showimage command. The first
// argument is the image URL; the rest is a style list such as
// "width: 200px; border: 1px solid red".
func ParseShowImage(cmd Command) (ShowImage, error) {
	if len(cmd.Args) == 0 {
		return ShowImage{}, schema.ErrInvalidImageURL
	}
	return ShowImage{
		URL:   cmd.Args[0],
		Style: ParseStyleList(strings.Join(cmd.Args[1:], " ")),
	}, nil
}

// ParseStyleList parses semicolon separated "property: value" fragments.
// Empty or malformed fragments are skipped. It returns nil when nothing parsed.
func ParseStyleList(list string) map[string]string {
	var out map[string]string
	for _, fragment := range strings.Split(list, ";") {
		property, value, ok := strings.Cut(fragment, ":")
		if !ok {
			continue
		}
		property = strings.TrimSpace(property)
		value = strings.TrimSpace(value)
		if property == "" || value == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[property] = value
	}
	return out
}
