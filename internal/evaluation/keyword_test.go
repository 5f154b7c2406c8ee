package evaluation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewKeywordSetDeduplicatesCaseInsensitively(t *testing.T) {
	set := NewKeywordSet([]string{"Indexing", "  indexing ", "", "Primary   Key", "PRIMARY KEY", "   "})

	require.Equal(t, 2, set.Len())
	require.Equal(t, []string{"Indexing", "Primary Key"}, set.Items())
	require.True(t, set.Contains("primary key"))

	canonical, ok := set.Lookup(" INDEXING")
	require.True(t, ok)
	require.Equal(t, "Indexing", canonical)

	_, ok = set.Lookup("sharding")
	require.False(t, ok)
}

func TestKeywordSetItemsReturnsCopy(t *testing.T) {
	set := NewKeywordSet([]string{"alpha", "beta"})
	items := set.Items()
	items[0] = "mutated"

	require.Equal(t, []string{"alpha", "beta"}, set.Items())
}

func TestKeywordSetTruncate(t *testing.T) {
	set := NewKeywordSet([]string{"a", "b", "c", "d"})

	require.Equal(t, []string{"a", "b"}, set.Truncate(2).Items())
	require.Equal(t, 4, set.Truncate(10).Len())
	require.True(t, set.Truncate(2).Contains("B"))
	require.False(t, set.Truncate(2).Contains("c"))
}

func TestKeywordSetJSON(t *testing.T) {
	set := NewKeywordSet([]string{"Indexing", "indexing", "Joins"})

	encoded, err := json.Marshal(set)
	require.NoError(t, err)
	require.JSONEq(t, `["Indexing","Joins"]`, string(encoded))

	var decoded KeywordSet
	require.NoError(t, json.Unmarshal([]byte(`["Joins","joins","Views"]`), &decoded))
	require.Equal(t, []string{"Joins", "Views"}, decoded.Items())
}

func TestZeroKeywordSetIsUsable(t *testing.T) {
	var set KeywordSet
	require.Equal(t, 0, set.Len())
	require.False(t, set.Contains("anything"))
	require.Empty(t, set.Items())
}
