// Package dedup decides which copies of a duplicated Immich asset survive.
//
// The package is pure: it never talks to the server itself. Assets come in
// as immutable snapshots, and the output is a set of asset IDs to delete.
package dedup

import (
	"strings"

	"github.com/yourusername/immich-dedup/pkg/immich"
)

// Asset is a read-only snapshot of the asset fields the resolution policy looks at.
type Asset struct {
	ID               string `json:"id"`
	OriginalPath     string `json:"originalPath"`
	OriginalFileName string `json:"originalFileName"`
	FileSize         int64  `json:"fileSize"`
	IsFavorite       bool   `json:"isFavorite"`
}

// FromImmich converts an API asset into a snapshot.
func FromImmich(a immich.Asset) Asset {
	return Asset{
		ID:               a.ID,
		OriginalPath:     a.OriginalPath,
		OriginalFileName: a.OriginalFileName,
		FileSize:         a.SizeInBytes(),
		IsFavorite:       a.IsFavorite,
	}
}

// FromImmichAll converts a slice of API assets.
func FromImmichAll(assets []immich.Asset) []Asset {
	out := make([]Asset, len(assets))
	for i, a := range assets {
		out[i] = FromImmich(a)
	}
	return out
}

// Classifier tells external library imports and phone uploads apart by the
// path prefix the server recorded at ingestion time.
type Classifier struct {
	ExternalLibraryPrefix string
	UploadPrefix          string
}

// InExternalLibrary reports whether the asset was imported from the external library.
func (c Classifier) InExternalLibrary(a Asset) bool {
	return c.ExternalLibraryPrefix != "" && strings.HasPrefix(a.OriginalPath, c.ExternalLibraryPrefix)
}

// IsPhoneUpload reports whether the asset was uploaded by a mobile client.
func (c Classifier) IsPhoneUpload(a Asset) bool {
	return c.UploadPrefix != "" && strings.HasPrefix(a.OriginalPath, c.UploadPrefix)
}

// Prefer reports whether a should be kept over b.
//
// An external library asset beats one that is not. Between two external
// library assets a favorite beats a non-favorite. Every other pair is a tie
// and Prefer returns false in both directions.
func Prefer(c Classifier, a, b Asset) bool {
	aExt, bExt := c.InExternalLibrary(a), c.InExternalLibrary(b)

	switch {
	case aExt && !bExt:
		return true
	case !aExt && bExt:
		return false
	case aExt && bExt:
		return a.IsFavorite && !b.IsFavorite
	default:
		return false
	}
}
