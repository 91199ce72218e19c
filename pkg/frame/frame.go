// Package frame serves random photos of chosen people, sized for a digital photo frame.
package frame

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/immich-dedup/pkg/immich"
)

var (
	// ErrNoPeople is returned when no person name was given.
	ErrNoPeople = errors.New("at least one person name is required")
	// ErrPersonNotUnique is returned when a name matches zero or several people.
	ErrPersonNotUnique = errors.New("person name does not match exactly one person")
	// ErrNoAsset is returned when no image contains all requested people.
	ErrNoAsset = errors.New("no matching asset")
	// ErrUnsupportedFormat is returned for originals that cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Library is the part of the Immich API the frame needs.
type Library interface {
	SearchPerson(ctx context.Context, name string) ([]immich.Person, error)
	SearchRandom(ctx context.Context, personIDs []string, n int) ([]immich.Asset, error)
	DownloadOriginal(ctx context.Context, assetID string) ([]byte, error)
}

// Picture is a rendered frame image.
type Picture struct {
	Asset immich.Asset
	JPEG  []byte
}

// Frame picks and renders random photos.
type Frame struct {
	library Library
	people  *cache.Cache
}

// New creates a Frame that caches person lookups for ttl.
func New(library Library, ttl time.Duration) *Frame {
	return &Frame{
		library: library,
		people:  cache.New(ttl, 2*ttl),
	}
}

// PersonID resolves a name to the ID of the single person it matches.
func (f *Frame) PersonID(ctx context.Context, name string) (string, error) {
	cacheKey := "person:" + name
	if id, found := f.people.Get(cacheKey); found {
		return id.(string), nil
	}

	people, err := f.library.SearchPerson(ctx, name)
	if err != nil {
		return "", err
	}

	if len(people) != 1 {
		return "", fmt.Errorf("%w: %q matched %d people", ErrPersonNotUnique, name, len(people))
	}

	f.people.Set(cacheKey, people[0].ID, cache.DefaultExpiration)
	return people[0].ID, nil
}

// Pick chooses a random image showing every named person.
func (f *Frame) Pick(ctx context.Context, names []string) (immich.Asset, error) {
	if len(names) == 0 {
		return immich.Asset{}, ErrNoPeople
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, err := f.PersonID(ctx, name)
		if err != nil {
			return immich.Asset{}, err
		}
		ids = append(ids, id)
	}

	assets, err := f.library.SearchRandom(ctx, ids, 1)
	if err != nil {
		return immich.Asset{}, err
	}
	if len(assets) == 0 {
		return immich.Asset{}, fmt.Errorf("%w for %s", ErrNoAsset, strings.Join(names, ", "))
	}

	return assets[0], nil
}

// Render picks an image and returns it as a JPEG padded to width×height.
func (f *Frame) Render(ctx context.Context, names []string, width, height int) (*Picture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	asset, err := f.Pick(ctx, names)
	if err != nil {
		return nil, err
	}

	if isHEIF(asset.OriginalFileName) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, asset.OriginalFileName)
	}

	data, err := f.library.DownloadOriginal(ctx, asset.ID)
	if err != nil {
		return nil, err
	}

	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}

	padded := Pad(img, width, height)

	out, err := EncodeJPEG(padded)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("asset_id", asset.ID).
		Str("format", format).
		Int("source_width", img.Bounds().Dx()).
		Int("source_height", img.Bounds().Dy()).
		Int("bytes", len(out)).
		Msg("Rendered frame image")

	return &Picture{Asset: asset, JPEG: out}, nil
}

func isHEIF(name string) bool {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "heic", "heif":
		return true
	default:
		return false
	}
}
