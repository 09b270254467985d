package artifact

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/depthbrush/internal/types"
)

func TestPutReplacesWholeCategory(t *testing.T) {
	s := NewStore()
	s.Put(Annotations, types.ImageSet{
		{Key: "a", Src: "data:1", Title: TitleMask},
		{Key: "b", Src: "data:2", Title: TitleIgnoreMask},
	})
	s.Put(Diffusion, types.ImageSet{{Key: "d", Src: "data:3", Title: TitleDiffusion}})

	stored := s.Put(Annotations, types.ImageSet{{Key: "c", Src: "data:4", Title: TitleWithScribbles}})
	require.Len(t, stored, 1)

	got := s.Get(Annotations)
	require.Len(t, got, 1)
	require.Equal(t, TitleWithScribbles, got[0].Title)
	require.Equal(t, Annotations, got[0].Category)

	_, err := s.FindByTitle(Annotations, TitleMask)
	require.ErrorIs(t, err, ErrNotFound)

	// Other categories are untouched.
	d, err := s.FindByTitle(Diffusion, TitleDiffusion)
	require.NoError(t, err)
	require.Equal(t, "data:3", d.Src)
}

func TestPutDropsEmptySourcesAndDefaultsTitle(t *testing.T) {
	s := NewStore()
	s.Put(Focus, types.ImageSet{
		{Key: "blank", Src: "", Title: "Blank"},
		{Key: "Focus Result", Src: "data:x"},
	})
	got := s.Get(Focus)
	require.Len(t, got, 1)
	require.Equal(t, "Focus Result", got[0].Title)
}

func TestGetUnknownCategoryIsEmpty(t *testing.T) {
	s := NewStore()
	require.Empty(t, s.Get(Diffusion))
	s.Put(Diffusion, nil)
	require.Empty(t, s.Get(Diffusion))
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Put(Focus, types.ImageSet{{Key: "k", Src: "data:x", Title: "t"}})
	got := s.Get(Focus)
	got[0].Title = "changed"
	require.Equal(t, "t", s.Get(Focus)[0].Title)
}

func TestMissingAndClear(t *testing.T) {
	s := NewStore()
	s.Put(Annotations, types.ImageSet{{Key: "m", Src: "data:m", Title: TitleMask}})
	require.Equal(t, []string{TitleWithScribbles, TitleIgnoreMask},
		s.Missing(Annotations, TitleWithScribbles, TitleMask, TitleIgnoreMask))

	s.Clear()
	require.Empty(t, s.Get(Annotations))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Diffusion ")
	require.NoError(t, err)
	require.Equal(t, Diffusion, c)
	_, err = ParseCategory("depth")
	require.Error(t, err)
}

func TestArtifactDecode(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.SetGray(1, 1, color.Gray{Y: 77})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	a := Artifact{Title: "x", Src: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())}
	out, err := a.Decode()
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 3, 2), out.Bounds())
	require.Equal(t, color.Gray{Y: 77}, color.GrayModel.Convert(out.At(1, 1)))

	_, err = Artifact{Src: "/static/x.png"}.Decode()
	require.Error(t, err)
	_, err = Artifact{Src: "data:image/png;base64,@@@"}.Decode()
	require.Error(t, err)
}
