package core

import "pkt.systems/nextvm/schema"

const defaultMaxEntries = schema.DefaultBufferMaxEntries

// buffer stores the output log of a session. Entries are numbered with a
// per-session sequence that keeps increasing across resets.
type buffer struct {
	entries    []schema.OutputEntry
	maxEntries int
	seq        uint64
}

// Append numbers and stores entries, trimming the oldest entries beyond the
// limit. It returns the stored copies.
func (b *buffer) Append(entries ...schema.OutputEntry) []schema.OutputEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]schema.OutputEntry, 0, len(entries))
	for _, entry := range entries {
		b.seq++
		entry.Seq = b.seq
		b.entries = append(b.entries, entry)
		out = append(out, entry)
	}
	maxEntries := b.maxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if len(b.entries) > maxEntries {
		trim := len(b.entries) - maxEntries
		b.entries = append([]schema.OutputEntry(nil), b.entries[trim:]...)
	}
	return out
}

// Reset replaces the log with the given entries.
func (b *buffer) Reset(entries ...schema.OutputEntry) []schema.OutputEntry {
	b.entries = nil
	return b.Append(entries...)
}

// Len returns the number of stored entries.
func (b *buffer) Len() int {
	return len(b.entries)
}

// Snapshot returns a copy of the last limit entries, or all when limit <= 0.
func (b *buffer) Snapshot(limit int) []schema.OutputEntry {
	total := len(b.entries)
	start := 0
	if limit > 0 && limit < total {
		start = total - limit
	}
	out := make([]schema.OutputEntry, total-start)
	copy(out, b.entries[start:])
	return out
}

func newBufferWithMaxEntries(maxEntries int) *buffer {
	buf := &buffer{maxEntries: defaultMaxEntries}
	if maxEntries > 0 {
		buf.maxEntries = maxEntries
	}
	return buf
}
