package core

import "strings"

const defaultHistoryMax = 200

// historyBuffer is a fixed-size ring of submitted commands, oldest first.
// Blank commands and repeats of the newest command are not recorded.
type historyBuffer struct {
	ring  []string
	start int
	count int
}

func newHistory(max int) *historyBuffer {
	if max <= 0 {
		max = defaultHistoryMax
	}
	return &historyBuffer{ring: make([]string, max)}
}

// Append records command and reports whether it was kept.
func (h *historyBuffer) Append(command string) bool {
	if h == nil || strings.TrimSpace(command) == "" {
		return false
	}
	if last, ok := h.last(); ok && last == command {
		return false
	}
	if h.count < len(h.ring) {
		h.ring[(h.start+h.count)%len(h.ring)] = command
		h.count++
		return true
	}
	h.ring[h.start] = command
	h.start = (h.start + 1) % len(h.ring)
	return true
}

func (h *historyBuffer) last() (string, bool) {
	if h.count == 0 {
		return "", false
	}
	return h.ring[(h.start+h.count-1)%len(h.ring)], true
}

// Entries returns a copy of the history, oldest first.
func (h *historyBuffer) Entries() []string {
	if h == nil || h.count == 0 {
		return nil
	}
	out := make([]string, h.count)
	for i := range out {
		out[i] = h.ring[(h.start+i)%len(h.ring)]
	}
	return out
}
