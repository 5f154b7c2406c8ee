package evaluation

import (
	"encoding/json"
	"strings"
)

// KeywordSet is an ordered collection of unique keywords. Comparison is
// case-insensitive; the first-seen casing is kept for display.
type KeywordSet struct {
	items []string
	index map[string]int
}

// NewKeywordSet builds a set from raw strings, trimming entries, dropping
// blanks and collapsing case-insensitive duplicates.
func NewKeywordSet(values []string) KeywordSet {
	set := KeywordSet{
		items: make([]string, 0, len(values)),
		index: make(map[string]int, len(values)),
	}
	for _, value := range values {
		set.add(value)
	}
	return set
}

func (s *KeywordSet) add(value string) bool {
	trimmed := strings.Join(strings.Fields(value), " ")
	if trimmed == "" {
		return false
	}
	key := normalizeKeyword(trimmed)
	if _, exists := s.index[key]; exists {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[key] = len(s.items)
	s.items = append(s.items, trimmed)
	return true
}

// Len returns the number of keywords.
func (s KeywordSet) Len() int {
	return len(s.items)
}

// Items returns a copy of the keywords in display order.
func (s KeywordSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Contains reports whether keyword belongs to the set, ignoring case.
func (s KeywordSet) Contains(keyword string) bool {
	_, ok := s.Lookup(keyword)
	return ok
}

// Lookup returns the canonical spelling of keyword when it belongs to the set.
func (s KeywordSet) Lookup(keyword string) (string, bool) {
	idx, ok := s.index[normalizeKeyword(keyword)]
	if !ok {
		return "", false
	}
	return s.items[idx], true
}

// Truncate returns a set holding at most n keywords.
func (s KeywordSet) Truncate(n int) KeywordSet {
	if n < 0 || n >= len(s.items) {
		return s
	}
	return NewKeywordSet(s.items[:n])
}

func (s KeywordSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Items())
}

func (s *KeywordSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewKeywordSet(values)
	return nil
}

func normalizeKeyword(keyword string) string {
	return strings.ToLower(strings.Join(strings.Fields(keyword), " "))
}
