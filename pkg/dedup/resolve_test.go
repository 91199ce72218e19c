package dedup

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKeepsExternalLibraryCopy(t *testing.T) {
	group := []Asset{upload("u1", true), external("e1", false), upload("u2", false)}

	r, err := Resolve(testClassifier, TieBreakID, group)
	require.NoError(t, err)

	assert.Equal(t, "e1", r.Keep.ID)
	assert.Equal(t, []string{"u1", "u2"}, r.DeleteIDs())
}

func TestResolveKeepsFavoriteAmongExternal(t *testing.T) {
	group := []Asset{external("a", false), external("b", true), external("c", false)}

	r, err := Resolve(testClassifier, TieBreakID, group)
	require.NoError(t, err)

	assert.Equal(t, "b", r.Keep.ID)
	assert.ElementsMatch(t, []string{"a", "c"}, r.DeleteIDs())
}

func TestResolveTieBreakByID(t *testing.T) {
	group := []Asset{upload("zz", false), upload("aa", false), upload("mm", false)}

	r, err := Resolve(testClassifier, TieBreakID, group)
	require.NoError(t, err)

	assert.Equal(t, "aa", r.Keep.ID)
	assert.Equal(t, []string{"mm", "zz"}, r.DeleteIDs())
}

func TestResolveTieBreakInputOrder(t *testing.T) {
	group := []Asset{upload("zz", false), upload("aa", false), upload("mm", false)}

	r, err := Resolve(testClassifier, TieBreakInputOrder, group)
	require.NoError(t, err)

	assert.Equal(t, "zz", r.Keep.ID)
	assert.Equal(t, []string{"aa", "mm"}, r.DeleteIDs())
}

func TestResolveTieBreakIDIndependentOfInputOrder(t *testing.T) {
	group := []Asset{upload("c", false), external("b", false), upload("a", false), external("d", false)}
	reversed := slices.Clone(group)
	slices.Reverse(reversed)

	r1, err := Resolve(testClassifier, TieBreakID, group)
	require.NoError(t, err)
	r2, err := Resolve(testClassifier, TieBreakID, reversed)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, "b", r1.Keep.ID)
}

func TestResolveStrictRejectsTie(t *testing.T) {
	group := []Asset{external("a", true), external("b", true), upload("c", false)}

	_, err := Resolve(testClassifier, TieBreakStrict, group)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousGroup))

	var ambiguous *AmbiguousGroupError
	require.True(t, errors.As(err, &ambiguous))
	require.Len(t, ambiguous.Tied, 2)
	assert.Equal(t, "a", ambiguous.Tied[0].ID)
	assert.Equal(t, "b", ambiguous.Tied[1].ID)
	assert.Contains(t, err.Error(), "a, b")
}

func TestResolveStrictAcceptsClearWinner(t *testing.T) {
	group := []Asset{upload("u1", false), external("e1", false), upload("u2", false)}

	r, err := Resolve(testClassifier, TieBreakStrict, group)
	require.NoError(t, err)

	assert.Equal(t, "e1", r.Keep.ID)
	assert.Equal(t, []string{"u1", "u2"}, r.DeleteIDs())
}

func TestResolveGroupTooSmall(t *testing.T) {
	_, err := Resolve(testClassifier, TieBreakID, []Asset{external("a", false)})
	assert.ErrorIs(t, err, ErrGroupTooSmall)

	_, err = Resolve(testClassifier, TieBreakID, nil)
	assert.ErrorIs(t, err, ErrGroupTooSmall)
}

func TestResolveDoesNotModifyGroup(t *testing.T) {
	group := []Asset{upload("u1", false), external("e1", false)}
	before := slices.Clone(group)

	_, err := Resolve(testClassifier, TieBreakID, group)
	require.NoError(t, err)

	assert.Equal(t, before, group)
}

func TestResolveIsIdempotent(t *testing.T) {
	group := []Asset{upload("u1", false), external("e2", true), external("e1", false), upload("u0", true)}

	first, err := Resolve(testClassifier, TieBreakID, group)
	require.NoError(t, err)

	again, err := Resolve(testClassifier, TieBreakID, append([]Asset{first.Keep}, first.Delete...))
	require.NoError(t, err)

	assert.Equal(t, first, again)
}

func TestResolveKeepIsNeverBeaten(t *testing.T) {
	group := []Asset{
		upload("u1", true), external("e1", false), external("e2", true),
		upload("u2", false), external("e3", true), Asset{ID: "x", OriginalPath: "/tmp/x.jpg"},
	}

	for _, tb := range []TieBreak{TieBreakID, TieBreakInputOrder} {
		r, err := Resolve(testClassifier, tb, group)
		require.NoError(t, err)

		assert.Len(t, r.Delete, len(group)-1)
		for _, d := range r.Delete {
			assert.False(t, Prefer(testClassifier, d, r.Keep), "%s beats kept %s", d.ID, r.Keep.ID)
		}
	}
}

func TestParseTieBreak(t *testing.T) {
	tests := []struct {
		in      string
		want    TieBreak
		wantErr bool
	}{
		{"", TieBreakID, false},
		{"id", TieBreakID, false},
		{"ID", TieBreakID, false},
		{"input", TieBreakInputOrder, false},
		{" strict ", TieBreakStrict, false},
		{"random", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTieBreak(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTieBreakString(t *testing.T) {
	for _, tb := range []TieBreak{TieBreakID, TieBreakInputOrder, TieBreakStrict} {
		parsed, err := ParseTieBreak(tb.String())
		require.NoError(t, err)
		assert.Equal(t, tb, parsed)
	}
	assert.Equal(t, "TieBreak(9)", TieBreak(9).String())
}
