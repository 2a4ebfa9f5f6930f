// Package localimage provides an ImageTransformer that serves images out of
// an ObjectStore and resizes them in-process. It lets the gateway run
// without an edge transformation service, at the cost of only producing
// JPEG, PNG and GIF output.
package localimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/arroweffect/imgapi"
)

const (
	// DefaultQuality is used for JPEG output when no quality option is given.
	DefaultQuality = 85
	// MaxDimension caps the requested output width and height.
	MaxDimension = 8192
)

// Transformer implements imgapi.ImageTransformer on top of an ObjectStore.
type Transformer struct {
	store imgapi.ObjectStore
}

// New creates a Transformer reading originals from store.
func New(store imgapi.ObjectStore) *Transformer {
	return &Transformer{store: store}
}

// Fetch loads req.Key from the store and, when req carries options,
// resizes and re-encodes it. Missing or invalid keys yield a 404 response;
// images that cannot be decoded yield 415 so the caller can fall back to
// the untransformed original.
func (t *Transformer) Fetch(ctx context.Context, req imgapi.FetchRequest) (*imgapi.FetchResponse, error) {
	if !imgapi.IsValidPath(req.Key) {
		return textResponse(http.StatusNotFound, "not found"), nil
	}

	rc, info, err := t.store.Get(ctx, req.Key)
	if err != nil {
		if errors.Is(err, imgapi.ErrNotFound) {
			return textResponse(http.StatusNotFound, "not found"), nil
		}
		return nil, fmt.Errorf("local fetch %s: %w", req.Key, err)
	}

	if !req.Transformed() {
		header := http.Header{}
		header.Set("Content-Type", contentTypeOr(info.ContentType))
		header.Set("Content-Length", strconv.FormatInt(info.Size, 10))
		if info.ETag != "" {
			header.Set("ETag", `"`+info.ETag+`"`)
		}
		return &imgapi.FetchResponse{StatusCode: http.StatusOK, Header: header, Body: rc}, nil
	}
	defer func() { _ = rc.Close() }()

	src, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return textResponse(http.StatusUnsupportedMediaType, "unsupported image"), nil
	}

	out := Apply(src, req.Options)
	format := outputFormat(req.Key)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, format, imaging.JPEGQuality(quality(req.Options))); err != nil {
		return nil, fmt.Errorf("local encode %s: %w", req.Key, err)
	}

	header := http.Header{}
	header.Set("Content-Type", formatContentType(format))
	header.Set("Content-Length", strconv.Itoa(buf.Len()))
	header.Set("Vary", "Accept")
	return &imgapi.FetchResponse{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(&buf),
	}, nil
}

// Apply resizes and rotates img according to opts. Supported options are
// width, height, dpr, fit (scale-down, contain, cover, crop, pad), rotate
// (90, 180, 270 clockwise) and background (named white or black, used by
// pad). Unsupported options are ignored.
func Apply(img image.Image, opts imgapi.TransformOptions) image.Image {
	out := img

	switch degrees, _ := opts.Number("rotate"); int(degrees) {
	case 90:
		out = imaging.Rotate270(out)
	case 180:
		out = imaging.Rotate180(out)
	case 270:
		out = imaging.Rotate90(out)
	}

	w, h := dimensions(opts)
	if w == 0 && h == 0 {
		return out
	}

	bounds := out.Bounds()
	fit, _ := opts.String("fit")

	switch fit {
	case "cover", "crop":
		if w > 0 && h > 0 {
			return imaging.Fill(out, w, h, imaging.Center, imaging.Lanczos)
		}
		return imaging.Resize(out, w, h, imaging.Lanczos)
	case "pad":
		if w == 0 || h == 0 {
			return imaging.Resize(out, w, h, imaging.Lanczos)
		}
		canvas := imaging.New(w, h, background(opts))
		return imaging.PasteCenter(canvas, imaging.Fit(out, w, h, imaging.Lanczos))
	case "contain":
		return resizeWithin(out, w, h)
	default:
		// scale-down: never enlarge
		if (w == 0 || bounds.Dx() <= w) && (h == 0 || bounds.Dy() <= h) {
			return out
		}
		return resizeWithin(out, w, h)
	}
}

func resizeWithin(img image.Image, w, h int) image.Image {
	if w > 0 && h > 0 {
		return imaging.Fit(img, w, h, imaging.Lanczos)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

func dimensions(opts imgapi.TransformOptions) (int, int) {
	dpr, ok := opts.Number("dpr")
	if !ok || dpr <= 0 {
		dpr = 1
	}

	scale := func(key string) int {
		v, ok := opts.Number(key)
		if !ok || v <= 0 {
			return 0
		}
		return min(int(v*dpr), MaxDimension)
	}

	return scale("width"), scale("height")
}

func quality(opts imgapi.TransformOptions) int {
	q, ok := opts.Number("quality")
	if !ok {
		return DefaultQuality
	}
	return max(1, min(100, int(q)))
}

func background(opts imgapi.TransformOptions) color.Color {
	if bg, _ := opts.String("background"); strings.EqualFold(bg, "black") {
		return color.Black
	}
	return color.White
}

func outputFormat(key string) imaging.Format {
	f, err := imaging.FormatFromFilename(key)
	if err != nil {
		return imaging.JPEG
	}
	switch f {
	case imaging.PNG, imaging.GIF:
		return f
	default:
		return imaging.JPEG
	}
}

func formatContentType(f imaging.Format) string {
	switch f {
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func contentTypeOr(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

func textResponse(code int, body string) *imgapi.FetchResponse {
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return &imgapi.FetchResponse{
		StatusCode: code,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}
