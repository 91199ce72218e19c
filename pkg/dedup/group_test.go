package dedup

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortGroupBy(t *testing.T) {
	words := []string{"pear", "fig", "kiwi", "apple", "lime", "yam"}

	groups := SortGroupBy(words, func(s string) int { return len(s) })

	require.Len(t, groups, 3)
	assert.Equal(t, 3, groups[0].Key)
	assert.Equal(t, []string{"fig", "yam"}, groups[0].Items)
	assert.Equal(t, 4, groups[1].Key)
	assert.Equal(t, []string{"pear", "kiwi", "lime"}, groups[1].Items, "stable within a key")
	assert.Equal(t, 5, groups[2].Key)
	assert.Equal(t, []string{"apple"}, groups[2].Items)

	assert.Equal(t, []string{"pear", "fig", "kiwi", "apple", "lime", "yam"}, words, "input untouched")
}

func TestSortGroupByEmpty(t *testing.T) {
	assert.Empty(t, SortGroupBy([]int(nil), func(i int) int { return i }))
}

func TestGroupsLargerThanSingleDuplicateSubset(t *testing.T) {
	items := []int{7, 3, 42, 9, 42, 1, 42, 5}

	groups := slices.Collect(GroupsLargerThan(items, 1, func(i int) int { return i }))

	require.Len(t, groups, 1)
	assert.Equal(t, []int{42, 42, 42}, groups[0])
}

func TestGroupsLargerThanThreshold(t *testing.T) {
	items := []string{"a", "b", "a", "c", "b", "b"}
	identity := func(s string) string { return s }

	assert.Len(t, slices.Collect(GroupsLargerThan(items, 0, identity)), 3)
	assert.Len(t, slices.Collect(GroupsLargerThan(items, 1, identity)), 2)
	assert.Equal(t, [][]string{{"b", "b", "b"}}, slices.Collect(GroupsLargerThan(items, 2, identity)))
	assert.Empty(t, slices.Collect(GroupsLargerThan(items, 3, identity)))
}

func TestGroupsLargerThanStopsEarly(t *testing.T) {
	items := []int{1, 1, 2, 2, 3, 3}
	seen := 0

	for range GroupsLargerThan(items, 1, func(i int) int { return i }) {
		seen++
		break
	}

	assert.Equal(t, 1, seen)
}

func TestMatchingSizeAndName(t *testing.T) {
	assets := []Asset{
		{ID: "1", FileSize: 100, OriginalFileName: "a.jpg"},
		{ID: "2", FileSize: 100, OriginalFileName: "a.jpg"},
		{ID: "3", FileSize: 200, OriginalFileName: "b.jpg"},
	}

	groups := MatchingSizeAndName(assets)

	require.Len(t, groups, 1)
	require.Len(t, groups[0], 2)
	assert.Equal(t, "1", groups[0][0].ID)
	assert.Equal(t, "2", groups[0][1].ID)
}

func TestMatchingSizeAndNameNeedsBothKeys(t *testing.T) {
	assets := []Asset{
		{ID: "same-size-1", FileSize: 100, OriginalFileName: "a.jpg"},
		{ID: "same-size-2", FileSize: 100, OriginalFileName: "b.jpg"},
		{ID: "same-name-1", FileSize: 300, OriginalFileName: "c.jpg"},
		{ID: "same-name-2", FileSize: 301, OriginalFileName: "c.jpg"},
		{ID: "dup-1", FileSize: 500, OriginalFileName: "d.jpg"},
		{ID: "dup-2", FileSize: 500, OriginalFileName: "d.jpg"},
		{ID: "dup-3", FileSize: 500, OriginalFileName: "d.jpg"},
		{ID: "dup-4", FileSize: 500, OriginalFileName: "e.jpg"},
		{ID: "dup-5", FileSize: 500, OriginalFileName: "e.jpg"},
	}

	groups := MatchingSizeAndName(assets)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 3)
	assert.Equal(t, "d.jpg", groups[0][0].OriginalFileName)
	assert.Len(t, groups[1], 2)
	assert.Equal(t, "e.jpg", groups[1][0].OriginalFileName)
}

func TestMatchingSizeAndNameSkipsUnknownSize(t *testing.T) {
	assets := []Asset{
		{ID: "1", OriginalFileName: "a.jpg"},
		{ID: "2", OriginalFileName: "a.jpg"},
	}

	assert.Empty(t, MatchingSizeAndName(assets))
}
