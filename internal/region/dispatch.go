package region

import (
	"log"
)

// Matcher picks a variant for a stored result by looking at its value keys.
type Matcher struct {
	Name   string
	Match  func(r Result, f fields) bool
	Decode func(r Result, f fields) (Region, error)
}

func isBrushType(t string) bool {
	return t == "brushlabels" || t == "brush"
}

// Matchers are tried in order; the first match decodes the result. Anything
// left over becomes a Classification.
var Matchers = []Matcher{
	{"videorectangle", func(_ Result, f fields) bool { return f.has("sequence") }, decodeVideoRectangle},
	{"timeline", func(_ Result, f fields) bool { return f.has("ranges") }, decodeTimeline},
	{"bitmask", func(_ Result, f fields) bool { return f.has("imageDataURL") }, decodeBitmask},
	{"polygon", func(_ Result, f fields) bool { return f.has("points") }, decodePolygon},
	{"brush", func(r Result, f fields) bool {
		return f.has("rle") || f.has("touches") || isBrushType(r.Type)
	}, decodeBrush},
	{"classification", func(_ Result, f fields) bool { return len(f) <= 1 }, decodeClassification},
	{"richtext", func(_ Result, f fields) bool {
		return f.has("startOffset") || f.isString("start") || (f.has("start", "end") && f.isString("text"))
	}, decodeRichText},
	{"audio", func(_ Result, f fields) bool { return f.isNumber("start") && f.isNumber("end") }, decodeAudio},
	{"ellipse", func(_ Result, f fields) bool { return f.has("x", "y", "radiusX") }, decodeEllipse},
	{"rectangle", func(_ Result, f fields) bool { return f.has("x", "y", "width", "height") }, decodeRectangle},
	{"keypoint", func(_ Result, f fields) bool { return f.has("x", "y") }, decodeKeyPoint},
}

// Decode turns a stored result into a region. It never fails: payloads that
// match no variant, or that a variant can not read, become a Classification
// holding the raw value.
func Decode(r Result) Region {
	f, err := parseValue(r.Value)
	if err != nil {
		log.Printf("region: result %s: %v", r.ID, err)
		return fallback(r, fields{})
	}
	for _, m := range Matchers {
		if !m.Match(r, f) {
			continue
		}
		// decoders consume keys, so give each one its own copy
		reg, err := m.Decode(r, f.clone())
		if err != nil {
			log.Printf("region: result %s looks like a %s but: %v", r.ID, m.Name, err)
			break
		}
		return reg
	}
	return fallback(r, f)
}

func fallback(r Result, f fields) Region {
	reg, _ := decodeClassification(r, f.clone())
	return reg
}

func (f fields) clone() fields {
	out := make(fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Clone makes an independent copy of a region with a new id.
func Clone(r Region) Region {
	res := r.Serialize()
	res.ID = NewID()
	res.ReadOnly = false
	return Decode(res)
}
