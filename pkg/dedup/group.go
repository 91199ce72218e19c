package dedup

import (
	"cmp"
	"iter"
	"slices"
)

// Group is a maximal run of items sharing the same key.
type Group[K cmp.Ordered, T any] struct {
	Key   K
	Items []T
}

// SortGroupBy stably sorts a copy of items by key and splits it into runs of equal keys.
// The input slice is left untouched.
func SortGroupBy[T any, K cmp.Ordered](items []T, key func(T) K) []Group[K, T] {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return cmp.Compare(key(a), key(b))
	})

	var groups []Group[K, T]
	for start := 0; start < len(sorted); {
		k := key(sorted[start])
		end := start + 1
		for end < len(sorted) && cmp.Compare(key(sorted[end]), k) == 0 {
			end++
		}
		groups = append(groups, Group[K, T]{Key: k, Items: sorted[start:end:end]})
		start = end
	}

	return groups
}

// GroupsLargerThan yields the groups of SortGroupBy that have more than n members.
// Nothing is sorted until the sequence is ranged over.
func GroupsLargerThan[T any, K cmp.Ordered](items []T, n int, key func(T) K) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		for _, g := range SortGroupBy(items, key) {
			if len(g.Items) <= n {
				continue
			}
			if !yield(g.Items) {
				return
			}
		}
	}
}

func fileSize(a Asset) int64 { return a.FileSize }
func fileName(a Asset) string { return a.OriginalFileName }

// MatchingSizeAndName groups assets with the same byte size and, within a
// size bucket, the same original filename. Only groups of two or more are
// returned.
//
// Assets without a known size are left out: a missing size would otherwise
// put every asset lacking EXIF data into one bucket.
func MatchingSizeAndName(assets []Asset) [][]Asset {
	sized := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if a.FileSize > 0 {
			sized = append(sized, a)
		}
	}

	var matches [][]Asset
	for bySize := range GroupsLargerThan(sized, 1, fileSize) {
		for byName := range GroupsLargerThan(bySize, 1, fileName) {
			matches = append(matches, byName)
		}
	}

	return matches
}
