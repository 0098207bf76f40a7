package mcs

import "strings"

// PersistentIDSet is the ordered sequence of persistent ids the device has
// acknowledged. Ordering is insertion order; uniqueness is not enforced
// here — the server guarantees uniqueness.
type PersistentIDSet struct {
	ids []string
}

// ParseJoinedPersistentIDs splits the ';'-separated persistent_id.txt
// contents back into a slice suitable for NewPersistentIDSet. An empty
// string yields an empty slice rather than a slice holding one empty id.
func ParseJoinedPersistentIDs(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ";")
}

// NewPersistentIDSet constructs a set pre-populated from a persisted list,
// e.g. loaded from persistent_id.txt.
func NewPersistentIDSet(ids []string) *PersistentIDSet {
	cp := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			cp = append(cp, id)
		}
	}
	return &PersistentIDSet{ids: cp}
}

// Append adds id to the set if it is non-empty.
func (s *PersistentIDSet) Append(id string) {
	if id == "" {
		return
	}
	s.ids = append(s.ids, id)
}

// Clear empties the set in place, e.g. after the server acknowledges a
// LoginResponse.
func (s *PersistentIDSet) Clear() {
	s.ids = s.ids[:0]
}

// Slice returns the current set in insertion order. The caller must not
// mutate the returned slice.
func (s *PersistentIDSet) Slice() []string {
	return s.ids
}

// Join renders the set as the ';'-separated string persisted to
// persistent_id.txt and emitted on the persistent_id event.
func (s *PersistentIDSet) Join() string {
	out := ""
	for i, id := range s.ids {
		if i > 0 {
			out += ";"
		}
		out += id
	}
	return out
}

// Len reports the number of ids currently held.
func (s *PersistentIDSet) Len() int { return len(s.ids) }
