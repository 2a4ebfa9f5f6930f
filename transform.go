package imgapi

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Output formats produced by NegotiateFormat.
const (
	FormatAVIF = "avif"
	FormatWebP = "webp"
	FormatJPEG = "jpeg"
)

// FormatKey is the option key carrying the negotiated output format.
const FormatKey = "format"

// AllowedOptions lists the query parameters forwarded to the transformation
// backend. Everything else in the query string is dropped.
var AllowedOptions = []string{
	"width",
	"height",
	"quality",
	"fit",
	"dpr",
	"gravity",
	"crop",
	"pad",
	"background",
	"draw",
	"rotate",
	"trim",
}

// TransformOptions maps option names to either a float64 (when the raw value
// parses as a finite number) or the raw string.
type TransformOptions map[string]any

// BuildTransformOptions maps an image request's query string and Accept
// header to transformation options.
//
// Only AllowedOptions keys are kept; when a key repeats, the first value
// wins. The format key is always derived from accept and overrides anything
// else.
func BuildTransformOptions(query url.Values, accept string) TransformOptions {
	opts := make(TransformOptions)

	for _, key := range AllowedOptions {
		values, ok := query[key]
		if !ok || len(values) == 0 {
			continue
		}
		opts[key] = parseOptionValue(values[0])
	}

	opts[FormatKey] = NegotiateFormat(accept)

	return opts
}

// NegotiateFormat picks an output format from an Accept header using
// case-sensitive substring tests: avif, then webp, then any image type as
// jpeg. Anything else, including an empty header, yields jpeg.
func NegotiateFormat(accept string) string {
	switch {
	case strings.Contains(accept, "image/avif"):
		return FormatAVIF
	case strings.Contains(accept, "image/webp"):
		return FormatWebP
	case strings.Contains(accept, "image/"):
		return FormatJPEG
	default:
		return FormatJPEG
	}
}

func parseOptionValue(raw string) any {
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return raw
	}
	return n
}

// Format returns the negotiated output format, or "" if none is set.
func (o TransformOptions) Format() string {
	s, _ := o[FormatKey].(string)
	return s
}

// Number returns the numeric value of an option.
func (o TransformOptions) Number(key string) (float64, bool) {
	n, ok := o[key].(float64)
	return n, ok
}

// String returns the string value of an option, formatting numbers.
func (o TransformOptions) String(key string) (string, bool) {
	v, ok := o[key]
	if !ok {
		return "", false
	}
	return formatOptionValue(v), true
}

// Encode renders the options as comma-separated key=value pairs in sorted
// key order, e.g. "format=webp,quality=80,width=800". Values are escaped
// so they can be embedded in a single URL path segment.
func (o TransformOptions) Encode() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.PathEscape(formatOptionValue(o[k])))
	}
	return b.String()
}

func formatOptionValue(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	default:
		return ""
	}
}
