package dedup

import (
	"errors"
	"slices"
)

// PhoneUploadDuplicates returns the IDs of every phone upload in the server's
// duplicate groups that also hold at least one external library copy.
// Groups lacking either kind are skipped. The preference order is not used:
// the external library copy always survives.
func PhoneUploadDuplicates(c Classifier, groups [][]Asset) []string {
	var ids []string

	for _, group := range groups {
		var uploads []string
		hasExternal := false

		for _, a := range group {
			if c.InExternalLibrary(a) {
				hasExternal = true
			}
			if c.IsPhoneUpload(a) {
				uploads = append(uploads, a.ID)
			}
		}

		if hasExternal && len(uploads) > 0 {
			ids = append(ids, uploads...)
		}
	}

	return ids
}

// ManualResult is the outcome of the size and filename pass.
type ManualResult struct {
	Groups      int                    `json:"groups"`
	Resolutions []Resolution           `json:"resolutions"`
	Ambiguous   []*AmbiguousGroupError `json:"-"`
}

// DeleteIDs returns the IDs marked for deletion across all resolved groups.
func (m ManualResult) DeleteIDs() []string {
	var ids []string
	for _, r := range m.Resolutions {
		ids = append(ids, r.DeleteIDs()...)
	}
	return ids
}

// ResolveManual groups assets by size and original filename and resolves every group.
// Under TieBreakStrict ambiguous groups are collected instead of resolved.
func ResolveManual(c Classifier, tb TieBreak, assets []Asset) (ManualResult, error) {
	groups := MatchingSizeAndName(assets)
	result := ManualResult{Groups: len(groups)}

	for _, group := range groups {
		resolution, err := Resolve(c, tb, group)
		if err != nil {
			var ambiguous *AmbiguousGroupError
			if errors.As(err, &ambiguous) {
				result.Ambiguous = append(result.Ambiguous, ambiguous)
				continue
			}
			return ManualResult{}, err
		}
		result.Resolutions = append(result.Resolutions, resolution)
	}

	return result, nil
}

// Plan is what a cleanup run would delete.
type Plan struct {
	DuplicateGroups int           `json:"duplicateGroups"`
	DuplicateAPIIDs []string      `json:"duplicateApiIds"`
	ManualChecked   bool          `json:"manualChecked"`
	ScannedAssets   int           `json:"scannedAssets,omitempty"`
	Manual          *ManualResult `json:"manual,omitempty"`
	IDs             []string      `json:"ids"`
}

// ManualIDs returns the IDs contributed by the size and filename pass.
func (p *Plan) ManualIDs() []string {
	if p.Manual == nil {
		return nil
	}
	return p.Manual.DeleteIDs()
}

// uniqueIDs concatenates the lists, dropping repeats and keeping first-seen order.
func uniqueIDs(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return slices.Clip(ids)
}
