// Package avatar turns an uploaded picture into the small JPEG data URL kept
// on a user profile.
package avatar

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"

	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/pkg/metrics"
	"golang.org/x/image/draw"
)

const (
	MaxSide        = 128
	Quality        = 75
	RetryQuality   = 55
	SoftLimit      = 120 * 1024
	SourceLimit    = 512 * 1024
	DataURLPrefix  = "data:image/jpeg;base64,"
	maxSourceBytes = 16 << 20
	// MaxPixels bounds the decoded size; decoders allocate from the header.
	MaxPixels = 40_000_000
)

// ErrNeedsConfirmation is returned when the source or the result is larger than
// the policy allows and the caller has not confirmed it.
var ErrNeedsConfirmation = errors.New("avatar needs confirmation")

// Options tune one ingestion.
type Options struct {
	// Confirmed accepts a large source and an oversized result.
	Confirmed bool
	SoftLimit int
	// SourceLimit is the source size above which confirmation is required up front.
	SourceLimit int
}

// Result is an accepted avatar.
type Result struct {
	DataURL string
	Width   int
	Height  int
	Quality int
	Bytes   int
	// Oversized is set when the result exceeds the soft limit and was accepted by confirmation.
	Oversized bool
}

// Ingest decodes r, fits it inside MaxSide×MaxSide on a white background and
// encodes it as JPEG, first at Quality and, when that is over the soft limit,
// once more at RetryQuality.
func Ingest(r io.Reader, opt Options) (*Result, error) {
	const op = "avatar.Ingest"
	if opt.SoftLimit <= 0 {
		opt.SoftLimit = SoftLimit
	}
	if opt.SourceLimit <= 0 {
		opt.SourceLimit = SourceLimit
	}
	src, err := io.ReadAll(io.LimitReader(r, maxSourceBytes+1))
	if err != nil {
		return nil, failure.E(failure.KindOther, op, err)
	}
	if len(src) > maxSourceBytes {
		metrics.AvatarIngest.WithLabelValues("rejected").Inc()
		return nil, failure.Newf(failure.KindValidation, op, "image is larger than %d bytes", maxSourceBytes)
	}
	if len(src) > opt.SourceLimit && !opt.Confirmed {
		metrics.AvatarIngest.WithLabelValues("confirm_source").Inc()
		return nil, failure.E(failure.KindNeedsConfirmation, op,
			fmt.Errorf("%w: file is over %dKB", ErrNeedsConfirmation, opt.SourceLimit/1024))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		metrics.AvatarIngest.WithLabelValues("invalid").Inc()
		return nil, failure.Newf(failure.KindValidation, op, "unsupported image: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		metrics.AvatarIngest.WithLabelValues("rejected").Inc()
		return nil, failure.Newf(failure.KindValidation, op, "image of %dx%d pixels is too large", cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		metrics.AvatarIngest.WithLabelValues("invalid").Inc()
		return nil, failure.Newf(failure.KindValidation, op, "unsupported image: %v", err)
	}
	thumb := fit(img, MaxSide)

	out, err := encode(thumb, Quality)
	if err != nil {
		return nil, failure.E(failure.KindOther, op, err)
	}
	q := Quality
	if len(out) > opt.SoftLimit {
		if out, err = encode(thumb, RetryQuality); err != nil {
			return nil, failure.E(failure.KindOther, op, err)
		}
		q = RetryQuality
	}
	res := &Result{
		DataURL: DataURLPrefix + base64.StdEncoding.EncodeToString(out),
		Width:   thumb.Bounds().Dx(),
		Height:  thumb.Bounds().Dy(),
		Quality: q,
		Bytes:   len(out),
	}
	if len(out) > opt.SoftLimit {
		if !opt.Confirmed {
			metrics.AvatarIngest.WithLabelValues("confirm_result").Inc()
			return nil, failure.E(failure.KindNeedsConfirmation, op,
				fmt.Errorf("%w: compressed image is still %dKB", ErrNeedsConfirmation, len(out)/1024))
		}
		res.Oversized = true
	}
	metrics.AvatarIngest.WithLabelValues("accepted").Inc()
	return res, nil
}

// FitSize scales w×h so the longer side is at most max, keeping the aspect
// ratio. Images already small enough are left alone.
func FitSize(w, h, max int) (int, int) {
	if w > h {
		if w > max {
			h = int(math.Round(float64(h) * float64(max) / float64(w)))
			w = max
		}
	} else if h > max {
		w = int(math.Round(float64(w) * float64(max) / float64(h)))
		h = max
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func fit(src image.Image, max int) *image.RGBA {
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), max)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
