package avatar

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"strings"
	"testing"

	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/stretchr/testify/require"
)

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeResult(t *testing.T, r *Result) image.Image {
	t.Helper()
	require.True(t, strings.HasPrefix(r.DataURL, DataURLPrefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(r.DataURL, DataURLPrefix))
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestIngestWideImage(t *testing.T) {
	src := gradientPNG(t, 2000, 1000)
	res, err := Ingest(bytes.NewReader(src), Options{Confirmed: len(src) > SourceLimit})
	require.NoError(t, err)
	require.Equal(t, 128, res.Width)
	require.Equal(t, 64, res.Height)
	require.Equal(t, Quality, res.Quality)
	require.Less(t, res.Bytes, SoftLimit)
	require.False(t, res.Oversized)

	img := decodeResult(t, res)
	require.Equal(t, 128, img.Bounds().Dx())
	require.Equal(t, 64, img.Bounds().Dy())
}

func TestFitSize(t *testing.T) {
	cases := []struct{ w, h, ew, eh int }{
		{2000, 1000, 128, 64},
		{1000, 2000, 64, 128},
		{100, 50, 100, 50},
		{128, 128, 128, 128},
		{300, 300, 128, 128},
		{1000, 3, 128, 1},
		{3000, 1, 128, 1},
	}
	for _, c := range cases {
		w, h := FitSize(c.w, c.h, MaxSide)
		require.Equal(t, c.ew, w, "%dx%d", c.w, c.h)
		require.Equal(t, c.eh, h, "%dx%d", c.w, c.h)
	}
}

func TestIngestTransparentBecomesWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	res, err := Ingest(&buf, Options{})
	require.NoError(t, err)
	out := decodeResult(t, res)
	r, g, b, _ := out.At(20, 20).RGBA()
	require.Greater(t, r>>8, uint32(240))
	require.Greater(t, g>>8, uint32(240))
	require.Greater(t, b>>8, uint32(240))
}

func TestIngestLargeSourceNeedsConfirmation(t *testing.T) {
	src := gradientPNG(t, 64, 64)
	_, err := Ingest(bytes.NewReader(src), Options{SourceLimit: 16})
	require.True(t, errors.Is(err, ErrNeedsConfirmation))
	require.True(t, failure.Is(err, failure.KindNeedsConfirmation))

	res, err := Ingest(bytes.NewReader(src), Options{SourceLimit: 16, Confirmed: true})
	require.NoError(t, err)
	require.Equal(t, 64, res.Width)
}

func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestIngestOversizedResult(t *testing.T) {
	src := noisyPNG(t, 128, 128)
	// a tiny budget forces both passes over the limit
	_, err := Ingest(bytes.NewReader(src), Options{SoftLimit: 100, SourceLimit: 1 << 30})
	require.True(t, errors.Is(err, ErrNeedsConfirmation))

	res, err := Ingest(bytes.NewReader(src), Options{SoftLimit: 100, SourceLimit: 1 << 30, Confirmed: true})
	require.NoError(t, err)
	require.True(t, res.Oversized)
	require.Equal(t, RetryQuality, res.Quality)
}

func TestIngestRejectsNonImage(t *testing.T) {
	_, err := Ingest(strings.NewReader("not an image"), Options{})
	require.True(t, failure.Is(err, failure.KindValidation))
}

// hugeHeaderPNG is a valid 1x1 PNG whose IHDR claims w×h pixels.
func hugeHeaderPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	b := gradientPNG(t, 1, 1)
	// 8-byte signature, then IHDR: length(4) type(4) width(4) height(4) ... crc(4)
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestIngestRejectsHugeDimensions(t *testing.T) {
	src := hugeHeaderPNG(t, 60000, 60000)
	require.Less(t, len(src), 1024)

	_, err := Ingest(bytes.NewReader(src), Options{Confirmed: true})
	require.True(t, failure.Is(err, failure.KindValidation), "%v", err)
	require.Contains(t, failure.Message(err), "60000x60000")
}
