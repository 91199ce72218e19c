package dedup

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrGroupTooSmall is returned when a group has fewer than two assets.
	ErrGroupTooSmall = errors.New("duplicate group needs at least two assets")
	// ErrAmbiguousGroup is matched by every *AmbiguousGroupError.
	ErrAmbiguousGroup = errors.New("ambiguous duplicate group")
)

// AmbiguousGroupError lists the assets tied for the keep slot under TieBreakStrict.
type AmbiguousGroupError struct {
	Tied []Asset
}

func (e *AmbiguousGroupError) Error() string {
	ids := make([]string, len(e.Tied))
	for i, a := range e.Tied {
		ids[i] = a.ID
	}
	return fmt.Sprintf("%s: %d assets tied for keep (%s)", ErrAmbiguousGroup, len(e.Tied), strings.Join(ids, ", "))
}

func (e *AmbiguousGroupError) Unwrap() error {
	return ErrAmbiguousGroup
}

// TieBreak decides the order of assets Prefer cannot tell apart.
type TieBreak int

const (
	// TieBreakID orders tied assets by ascending ID.
	TieBreakID TieBreak = iota
	// TieBreakInputOrder keeps tied assets in the order they arrived.
	TieBreakInputOrder
	// TieBreakStrict refuses to resolve a group whose best assets are tied.
	TieBreakStrict
)

// ParseTieBreak maps a configuration value to a TieBreak. The empty string means TieBreakID.
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "id":
		return TieBreakID, nil
	case "input":
		return TieBreakInputOrder, nil
	case "strict":
		return TieBreakStrict, nil
	default:
		return 0, fmt.Errorf("invalid tie break %q (must be 'id', 'input' or 'strict')", s)
	}
}

func (t TieBreak) String() string {
	switch t {
	case TieBreakID:
		return "id"
	case TieBreakInputOrder:
		return "input"
	case TieBreakStrict:
		return "strict"
	default:
		return fmt.Sprintf("TieBreak(%d)", int(t))
	}
}

// Resolution splits a duplicate group into the asset to keep and the ones to delete.
type Resolution struct {
	Keep   Asset   `json:"keep"`
	Delete []Asset `json:"delete"`
}

// DeleteIDs returns the IDs of the assets marked for deletion.
func (r Resolution) DeleteIDs() []string {
	ids := make([]string, len(r.Delete))
	for i, a := range r.Delete {
		ids[i] = a.ID
	}
	return ids
}

// Resolve orders the group from most to least preferred and keeps the first asset.
// The group slice is not modified.
func Resolve(c Classifier, tb TieBreak, group []Asset) (Resolution, error) {
	if len(group) < 2 {
		return Resolution{}, ErrGroupTooSmall
	}

	sorted := slices.Clone(group)
	slices.SortStableFunc(sorted, func(a, b Asset) int {
		switch {
		case Prefer(c, a, b):
			return -1
		case Prefer(c, b, a):
			return 1
		case tb == TieBreakID:
			return strings.Compare(a.ID, b.ID)
		default:
			return 0
		}
	})

	if tb == TieBreakStrict && !Prefer(c, sorted[0], sorted[1]) {
		tied := []Asset{sorted[0]}
		for _, a := range sorted[1:] {
			if Prefer(c, sorted[0], a) {
				break
			}
			tied = append(tied, a)
		}
		return Resolution{}, &AmbiguousGroupError{Tied: tied}
	}

	return Resolution{Keep: sorted[0], Delete: sorted[1:]}, nil
}
