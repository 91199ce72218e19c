package frame

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/immich-dedup/pkg/immich"
)

type fakeLibrary struct {
	people      map[string][]immich.Person
	random      []immich.Asset
	originals   map[string][]byte
	personCalls int
	randomIDs   [][]string
	downloadErr error
}

func (l *fakeLibrary) SearchPerson(ctx context.Context, name string) ([]immich.Person, error) {
	l.personCalls++
	return l.people[name], nil
}

func (l *fakeLibrary) SearchRandom(ctx context.Context, personIDs []string, n int) ([]immich.Asset, error) {
	l.randomIDs = append(l.randomIDs, personIDs)
	return l.random, nil
}

func (l *fakeLibrary) DownloadOriginal(ctx context.Context, assetID string) ([]byte, error) {
	if l.downloadErr != nil {
		return nil, l.downloadErr
	}
	return l.originals[assetID], nil
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newFakeLibrary(t *testing.T) *fakeLibrary {
	return &fakeLibrary{
		people: map[string][]immich.Person{
			"frodo": {{ID: "p-frodo", Name: "Frodo"}},
			"bilbo": {{ID: "p-bilbo", Name: "Bilbo"}},
			"sam":   {{ID: "p-sam1", Name: "Sam"}, {ID: "p-sam2", Name: "Samwise"}},
		},
		random:    []immich.Asset{{ID: "a1", OriginalFileName: "IMG_1.png"}},
		originals: map[string][]byte{"a1": solidPNG(t, 200, 100, color.White)},
	}
}

func TestPersonIDIsCached(t *testing.T) {
	lib := newFakeLibrary(t)
	f := New(lib, time.Minute)

	for i := 0; i < 3; i++ {
		id, err := f.PersonID(context.Background(), "frodo")
		require.NoError(t, err)
		assert.Equal(t, "p-frodo", id)
	}
	assert.Equal(t, 1, lib.personCalls)
}

func TestPersonIDNotUnique(t *testing.T) {
	f := New(newFakeLibrary(t), time.Minute)

	_, err := f.PersonID(context.Background(), "sam")
	assert.ErrorIs(t, err, ErrPersonNotUnique)

	_, err = f.PersonID(context.Background(), "gandalf")
	assert.ErrorIs(t, err, ErrPersonNotUnique)
}

func TestPick(t *testing.T) {
	lib := newFakeLibrary(t)
	f := New(lib, time.Minute)

	asset, err := f.Pick(context.Background(), []string{"frodo", "bilbo"})
	require.NoError(t, err)

	assert.Equal(t, "a1", asset.ID)
	assert.Equal(t, [][]string{{"p-frodo", "p-bilbo"}}, lib.randomIDs)
}

func TestPickErrors(t *testing.T) {
	lib := newFakeLibrary(t)
	f := New(lib, time.Minute)

	_, err := f.Pick(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoPeople)

	lib.random = nil
	_, err = f.Pick(context.Background(), []string{"frodo"})
	assert.ErrorIs(t, err, ErrNoAsset)
}

func TestRender(t *testing.T) {
	f := New(newFakeLibrary(t), time.Minute)

	pic, err := f.Render(context.Background(), []string{"frodo"}, 600, 448)
	require.NoError(t, err)
	assert.Equal(t, "a1", pic.Asset.ID)

	img, err := jpeg.Decode(bytes.NewReader(pic.JPEG))
	require.NoError(t, err)
	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 448, img.Bounds().Dy())

	// 200x100 scales to 600x300, leaving black bands of 74 rows above and below
	r, g, b, _ := img.At(300, 10).RGBA()
	assert.Less(t, r+g+b, uint32(3*0x1000))
	r, g, b, _ = img.At(300, 224).RGBA()
	assert.Greater(t, r+g+b, uint32(3*0xe000))
}

func TestRenderHEICUnsupported(t *testing.T) {
	lib := newFakeLibrary(t)
	lib.random = []immich.Asset{{ID: "a1", OriginalFileName: "IMG_1.HEIC"}}
	f := New(lib, time.Minute)

	_, err := f.Render(context.Background(), []string{"frodo"}, 600, 448)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRenderDownloadError(t *testing.T) {
	lib := newFakeLibrary(t)
	lib.downloadErr = errors.New("API error: status=404 body=missing")
	f := New(lib, time.Minute)

	_, err := f.Render(context.Background(), []string{"frodo"}, 600, 448)
	assert.ErrorContains(t, err, "status=404")
}

func TestRenderInvalidSize(t *testing.T) {
	f := New(newFakeLibrary(t), time.Minute)

	_, err := f.Render(context.Background(), []string{"frodo"}, 0, 448)
	assert.Error(t, err)
}
