package region

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
)

// Result is the serialized form of a region, the one shape stored and sent
// to the server. Relations travel in the same list with Type "relation" and
// only the From/To fields set.
type Result struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Value          json.RawMessage `json:"value"`
	FromName       string          `json:"from_name"`
	ToName         string          `json:"to_name"`
	Origin         string          `json:"origin,omitempty"`
	OriginalWidth  float64         `json:"original_width,omitempty"`
	OriginalHeight float64         `json:"original_height,omitempty"`
	ImageRotation  float64         `json:"image_rotation,omitempty"`
	ReadOnly       bool            `json:"readonly,omitempty"`
	Hidden         bool            `json:"hidden,omitempty"`
	Score          *float64        `json:"score,omitempty"`
	ParentID       string          `json:"parentID,omitempty"`

	FromID    string   `json:"from_id,omitempty"`
	ToID      string   `json:"to_id,omitempty"`
	Direction string   `json:"direction,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// TypeRelation marks a relation entry in a result list.
const TypeRelation = "relation"

// IsRelation reports whether the entry is a relation rather than a region.
func (r Result) IsRelation() bool { return r.Type == TypeRelation }

// fields is a decoded value object. Variants take the keys they know; what is
// left ends up in Base.Extra.
type fields map[string]json.RawMessage

func parseValue(raw json.RawMessage) (fields, error) {
	f := fields{}
	if len(raw) == 0 || string(raw) == "null" {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("while parsing result value: %w", err)
	}
	return f, nil
}

func (f fields) has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := f[k]; !ok {
			return false
		}
	}
	return true
}

// isNumber reports whether key holds a JSON number.
func (f fields) isNumber(key string) bool {
	raw, ok := f[key]
	if !ok {
		return false
	}
	var v float64
	return json.Unmarshal(raw, &v) == nil
}

func (f fields) isString(key string) bool {
	raw, ok := f[key]
	if !ok {
		return false
	}
	var v string
	return json.Unmarshal(raw, &v) == nil
}

// take decodes key into dst and removes it. Missing keys leave dst alone.
func (f fields) take(key string, dst any) error {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("while decoding %q: %w", key, err)
	}
	delete(f, key)
	return nil
}

// load fills the common part of a region from a result and the remaining
// value keys.
func (b *Base) load(r Result, f fields) {
	b.id = r.ID
	if b.id == "" {
		b.id = NewID()
	}
	b.Type = r.Type
	b.FromName = r.FromName
	b.ToName = r.ToName
	b.Origin = r.Origin
	b.OriginalWidth = r.OriginalWidth
	b.OriginalHeight = r.OriginalHeight
	b.ImageRotation = r.ImageRotation
	b.readOnly = r.ReadOnly
	b.hidden = r.Hidden
	b.Score = r.Score
	b.ParentID = r.ParentID

	if r.Type != "" {
		var labels []string
		if raw, ok := f[r.Type]; ok && json.Unmarshal(raw, &labels) == nil {
			if labels == nil {
				labels = []string{}
			}
			b.Labels = labels
			b.LabelsKey = r.Type
			delete(f, r.Type)
		}
	}
	if len(f) > 0 {
		b.Extra = make(map[string]json.RawMessage, len(f))
		for k, v := range f {
			b.Extra[k] = v
		}
	}
}

// result builds the wire form with the variant's value keys.
func (b *Base) result(value map[string]any) Result {
	v := make(map[string]any, len(b.Extra)+len(value)+1)
	for k, raw := range b.Extra {
		v[k] = raw
	}
	for k, x := range value {
		v[k] = x
	}
	if b.LabelsKey != "" {
		labels := b.Labels
		if labels == nil {
			labels = []string{}
		}
		v[b.LabelsKey] = labels
	}
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("region: failed to serialize %s: %v", b.id, err)
		raw = json.RawMessage("{}")
	}
	return Result{
		ID:             b.id,
		Type:           b.Type,
		Value:          raw,
		FromName:       b.FromName,
		ToName:         b.ToName,
		Origin:         b.Origin,
		OriginalWidth:  b.OriginalWidth,
		OriginalHeight: b.OriginalHeight,
		ImageRotation:  b.ImageRotation,
		ReadOnly:       b.readOnly,
		Hidden:         b.hidden,
		Score:          b.Score,
		ParentID:       b.ParentID,
	}
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%v: %w", x, ErrBadValue)
		}
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%v: %w", v, ErrBadValue)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%v (%T) is not a number: %w", v, v, ErrBadValue)
}

func asInt(v any) (int, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%v is not an integer: %w", v, ErrBadValue)
	}
	return int(f), nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%v (%T) is not a string: %w", v, v, ErrBadValue)
	}
	return s, nil
}

func asBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%v (%T) is not a bool: %w", v, v, ErrBadValue)
	}
	return b, nil
}

func asStrings(v any) ([]string, error) {
	switch x := v.(type) {
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out, nil
	case string:
		return []string{x}, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, err := asString(e)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%v (%T) is not a label list: %w", v, v, ErrBadValue)
}

func nonNegative(f float64) error {
	if f < 0 {
		return fmt.Errorf("%v is negative: %w", f, ErrBadValue)
	}
	return nil
}
