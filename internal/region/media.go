package region

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lewtec/marcador/internal/geometry"
)

// Touch is one brush stroke. Points are flattened x, y pairs in internal space.
type Touch struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"type"`
	Points    []float64 `json:"points"`
	BrushSize float64   `json:"brushSize,omitempty"`
}

const (
	TouchAdd    = "add"
	TouchEraser = "eraser"
)

// Brush is a raster mask, either as strokes still being drawn or as an RLE
// encoded mask produced by the canvas layer.
type Brush struct {
	Base
	Format  string
	RLE     []int
	Touches []Touch
}

func NewBrush() *Brush {
	return &Brush{Base: newBase("")}
}

func (b *Brush) Kind() Kind { return KindBrush }

// BeginTouch starts a new stroke.
func (b *Brush) BeginTouch(kind string, size float64) (bool, error) {
	return b.edit(b, func() error {
		if kind != TouchAdd && kind != TouchEraser {
			return fmt.Errorf("touch type %q: %w", kind, ErrBadValue)
		}
		b.Touches = append(b.Touches, Touch{ID: NewID(), Type: kind, BrushSize: size, Points: []float64{}})
		return nil
	})
}

// AddPoint extends the current stroke.
func (b *Brush) AddPoint(p geometry.Point) (bool, error) {
	return b.edit(b, func() error {
		if len(b.Touches) == 0 {
			return fmt.Errorf("brush %s has no stroke in progress: %w", b.ID(), ErrBadValue)
		}
		t := &b.Touches[len(b.Touches)-1]
		t.Points = append(t.Points, p.X, p.Y)
		return nil
	})
}

// IsEmpty reports whether the mask has any pixels at all.
func (b *Brush) IsEmpty() bool {
	if len(b.RLE) > 0 {
		return false
	}
	for _, t := range b.Touches {
		if t.Type == TouchAdd && len(t.Points) > 0 {
			return false
		}
	}
	return true
}

func (b *Brush) SetProperty(name string, value any) error {
	return setProperty(b, name, value, func() (bool, error) {
		switch name {
		case "rle":
			rle, ok := value.([]int)
			if !ok {
				return true, fmt.Errorf("rle must be []int, got %T: %w", value, ErrBadValue)
			}
			b.RLE = append([]int(nil), rle...)
			b.Format = "rle"
			return true, nil
		}
		return false, nil
	})
}

func (b *Brush) Serialize() Result {
	v := map[string]any{}
	if b.Format != "" {
		v["format"] = b.Format
	}
	if b.RLE != nil {
		v["rle"] = b.RLE
	}
	if len(b.Touches) > 0 {
		v["touches"] = b.Touches
	}
	return b.result(v)
}

func decodeBrush(res Result, f fields) (Region, error) {
	b := &Brush{}
	if err := f.take("format", &b.Format); err != nil {
		return nil, err
	}
	if err := f.take("rle", &b.RLE); err != nil {
		return nil, err
	}
	if err := f.take("touches", &b.Touches); err != nil {
		return nil, err
	}
	b.load(res, f)
	return b, nil
}

// Bitmask is a mask stored as a data url.
type Bitmask struct {
	Base
	ImageDataURL string
}

func (m *Bitmask) Kind() Kind { return KindBitmask }

func (m *Bitmask) SetProperty(name string, value any) error {
	return setProperty(m, name, value, func() (bool, error) {
		if name != "imageDataURL" {
			return false, nil
		}
		s, err := asString(value)
		if err != nil {
			return true, err
		}
		m.ImageDataURL = s
		return true, nil
	})
}

func (m *Bitmask) Serialize() Result {
	return m.result(map[string]any{"imageDataURL": m.ImageDataURL})
}

func decodeBitmask(res Result, f fields) (Region, error) {
	m := &Bitmask{}
	if err := f.take("imageDataURL", &m.ImageDataURL); err != nil {
		return nil, err
	}
	m.load(res, f)
	return m, nil
}

// Audio is a segment of an audio track, in seconds.
type Audio struct {
	Base
	Start, End float64
	Channel    int
}

func NewAudio(start, end float64, channel int) *Audio {
	return &Audio{Base: newBase(""), Start: start, End: end, Channel: channel}
}

func (a *Audio) Kind() Kind { return KindAudio }

// SetRange moves the segment. The render handle is repositioned through the
// usual change notification.
func (a *Audio) SetRange(start, end float64) (bool, error) {
	return a.edit(a, func() error {
		if start < 0 || end < start {
			return fmt.Errorf("audio range %v-%v: %w", start, end, ErrBadValue)
		}
		a.Start, a.End = start, end
		return nil
	})
}

func (a *Audio) SetProperty(name string, value any) error {
	return setProperty(a, name, value, func() (bool, error) {
		switch name {
		case "start":
			return setFloat(value, &a.Start, func(f float64) error {
				if f < 0 || f > a.End {
					return fmt.Errorf("start %v: %w", f, ErrBadValue)
				}
				return nil
			})
		case "end":
			return setFloat(value, &a.End, func(f float64) error {
				if f < a.Start {
					return fmt.Errorf("end %v before start %v: %w", f, a.Start, ErrBadValue)
				}
				return nil
			})
		case "channel":
			c, err := asInt(value)
			if err != nil {
				return true, err
			}
			a.Channel = c
			return true, nil
		}
		return false, nil
	})
}

func (a *Audio) Serialize() Result {
	return a.result(map[string]any{"start": a.Start, "end": a.End, "channel": a.Channel})
}

func decodeAudio(res Result, f fields) (Region, error) {
	a := &Audio{}
	if err := f.take("start", &a.Start); err != nil {
		return nil, err
	}
	if err := f.take("end", &a.End); err != nil {
		return nil, err
	}
	if err := f.take("channel", &a.Channel); err != nil {
		return nil, err
	}
	a.load(res, f)
	return a, nil
}

// FrameRange is an inclusive span of video frames.
type FrameRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Timeline marks spans of a video.
type Timeline struct {
	Base
	Ranges []FrameRange
}

func NewTimeline(r FrameRange) *Timeline {
	return &Timeline{Base: newBase(""), Ranges: []FrameRange{r}}
}

func (t *Timeline) Kind() Kind { return KindTimeline }

// SetRange replaces range i.
func (t *Timeline) SetRange(i int, r FrameRange) (bool, error) {
	return t.edit(t, func() error {
		if i < 0 || i >= len(t.Ranges) || r.End < r.Start {
			return fmt.Errorf("timeline range %d %+v: %w", i, r, ErrBadValue)
		}
		t.Ranges[i] = r
		return nil
	})
}

func (t *Timeline) SetProperty(name string, value any) error {
	return setProperty(t, name, value, func() (bool, error) {
		if name != "ranges" {
			return false, nil
		}
		rs, ok := value.([]FrameRange)
		if !ok {
			return true, fmt.Errorf("ranges must be []FrameRange, got %T: %w", value, ErrBadValue)
		}
		t.Ranges = append([]FrameRange(nil), rs...)
		return true, nil
	})
}

func (t *Timeline) Serialize() Result {
	ranges := t.Ranges
	if ranges == nil {
		ranges = []FrameRange{}
	}
	return t.result(map[string]any{"ranges": ranges})
}

func decodeTimeline(res Result, f fields) (Region, error) {
	t := &Timeline{}
	if err := f.take("ranges", &t.Ranges); err != nil {
		return nil, err
	}
	t.load(res, f)
	return t, nil
}

// Keyframe is the state of a video rectangle at one frame. A disabled
// keyframe ends the region's lifespan after that frame.
type Keyframe struct {
	Frame    int     `json:"frame"`
	Enabled  bool    `json:"enabled"`
	Rotation float64 `json:"rotation"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Time     float64 `json:"time,omitempty"`
}

// VideoRectangle is a box tracked across frames.
type VideoRectangle struct {
	Base
	Sequence []Keyframe
}

func NewVideoRectangle(k Keyframe) *VideoRectangle {
	k.Enabled = true
	return &VideoRectangle{Base: newBase(""), Sequence: []Keyframe{k}}
}

func (v *VideoRectangle) Kind() Kind { return KindVideoRectangle }

func (v *VideoRectangle) find(frame int) int {
	return sort.Search(len(v.Sequence), func(i int) bool { return v.Sequence[i].Frame >= frame })
}

// AddKeyframe inserts or replaces the keyframe at k.Frame, keeping the
// sequence ordered.
func (v *VideoRectangle) AddKeyframe(k Keyframe) (bool, error) {
	return v.edit(v, func() error {
		if k.Frame < 0 || k.Width < 0 || k.Height < 0 {
			return fmt.Errorf("keyframe %+v: %w", k, ErrBadValue)
		}
		i := v.find(k.Frame)
		if i < len(v.Sequence) && v.Sequence[i].Frame == k.Frame {
			v.Sequence[i] = k
			return nil
		}
		v.Sequence = append(v.Sequence, Keyframe{})
		copy(v.Sequence[i+1:], v.Sequence[i:])
		v.Sequence[i] = k
		return nil
	})
}

// RemoveKeyframe drops the keyframe at frame. The last keyframe can not be removed.
func (v *VideoRectangle) RemoveKeyframe(frame int) (bool, error) {
	return v.edit(v, func() error {
		i := v.find(frame)
		if i >= len(v.Sequence) || v.Sequence[i].Frame != frame {
			return fmt.Errorf("no keyframe at %d: %w", frame, ErrBadValue)
		}
		if len(v.Sequence) == 1 {
			return fmt.Errorf("can not remove the only keyframe: %w", ErrBadValue)
		}
		v.Sequence = append(v.Sequence[:i], v.Sequence[i+1:]...)
		return nil
	})
}

// ToggleLifespan flips the enabled flag of the keyframe at frame.
func (v *VideoRectangle) ToggleLifespan(frame int) (bool, error) {
	return v.edit(v, func() error {
		i := v.find(frame)
		if i >= len(v.Sequence) || v.Sequence[i].Frame != frame {
			return fmt.Errorf("no keyframe at %d: %w", frame, ErrBadValue)
		}
		v.Sequence[i].Enabled = !v.Sequence[i].Enabled
		return nil
	})
}

// ShapeAt returns the box at frame, interpolating linearly between keyframes.
// The second value is false when the region is not visible at that frame.
func (v *VideoRectangle) ShapeAt(frame int) (geometry.BBox, bool) {
	i := v.find(frame)
	if i < len(v.Sequence) && v.Sequence[i].Frame == frame {
		k := v.Sequence[i]
		return geometry.BBox{X: k.X, Y: k.Y, Width: k.Width, Height: k.Height}, true
	}
	if i == 0 {
		return geometry.BBox{}, false
	}
	prev := v.Sequence[i-1]
	if !prev.Enabled {
		return geometry.BBox{}, false
	}
	if i == len(v.Sequence) {
		return geometry.BBox{X: prev.X, Y: prev.Y, Width: prev.Width, Height: prev.Height}, true
	}
	next := v.Sequence[i]
	t := float64(frame-prev.Frame) / float64(next.Frame-prev.Frame)
	lerp := func(a, b float64) float64 { return a + (b-a)*t }
	return geometry.BBox{
		X:      lerp(prev.X, next.X),
		Y:      lerp(prev.Y, next.Y),
		Width:  lerp(prev.Width, next.Width),
		Height: lerp(prev.Height, next.Height),
	}, true
}

func (v *VideoRectangle) SetProperty(name string, value any) error {
	return setProperty(v, name, value, func() (bool, error) {
		if name != "sequence" {
			return false, nil
		}
		seq, ok := value.([]Keyframe)
		if !ok {
			return true, fmt.Errorf("sequence must be []Keyframe, got %T: %w", value, ErrBadValue)
		}
		v.Sequence = append([]Keyframe(nil), seq...)
		sort.SliceStable(v.Sequence, func(i, j int) bool { return v.Sequence[i].Frame < v.Sequence[j].Frame })
		return true, nil
	})
}

func (v *VideoRectangle) Serialize() Result {
	seq := v.Sequence
	if seq == nil {
		seq = []Keyframe{}
	}
	return v.result(map[string]any{"sequence": seq})
}

func decodeVideoRectangle(res Result, f fields) (Region, error) {
	v := &VideoRectangle{}
	if err := f.take("sequence", &v.Sequence); err != nil {
		return nil, err
	}
	sort.SliceStable(v.Sequence, func(i, j int) bool { return v.Sequence[i].Frame < v.Sequence[j].Frame })
	v.load(res, f)
	return v, nil
}

// Anchor is where a text span starts or ends: an xpath for HTML, a character
// offset for plain text.
type Anchor struct {
	XPath  string
	Offset float64
	IsPath bool
}

func (a Anchor) MarshalJSON() ([]byte, error) {
	if a.IsPath {
		return json.Marshal(a.XPath)
	}
	return json.Marshal(a.Offset)
}

func (a *Anchor) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = Anchor{XPath: s, IsPath: true}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("anchor %s: %w", b, ErrBadValue)
	}
	*a = Anchor{Offset: f}
	return nil
}

// Offsets are positions in the whole document text.
type Offsets struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// RichText is a span of text or HTML.
type RichText struct {
	Base
	Start, End    Anchor
	StartOffset   *int
	EndOffset     *int
	Text          *string
	GlobalOffsets *Offsets
}

func (t *RichText) Kind() Kind { return KindRichText }

func (t *RichText) SetProperty(name string, value any) error {
	return setProperty(t, name, value, func() (bool, error) {
		switch name {
		case "text":
			s, err := asString(value)
			if err != nil {
				return true, err
			}
			t.Text = &s
			return true, nil
		case "startOffset", "endOffset":
			n, err := asInt(value)
			if err != nil {
				return true, err
			}
			if name == "startOffset" {
				t.StartOffset = &n
			} else {
				t.EndOffset = &n
			}
			return true, nil
		}
		return false, nil
	})
}

func (t *RichText) Serialize() Result {
	v := map[string]any{"start": t.Start, "end": t.End}
	if t.StartOffset != nil {
		v["startOffset"] = *t.StartOffset
	}
	if t.EndOffset != nil {
		v["endOffset"] = *t.EndOffset
	}
	if t.Text != nil {
		v["text"] = *t.Text
	}
	if t.GlobalOffsets != nil {
		v["globalOffsets"] = *t.GlobalOffsets
	}
	return t.result(v)
}

func decodeRichText(res Result, f fields) (Region, error) {
	t := &RichText{}
	if err := f.take("start", &t.Start); err != nil {
		return nil, err
	}
	if err := f.take("end", &t.End); err != nil {
		return nil, err
	}
	if err := f.take("startOffset", &t.StartOffset); err != nil {
		return nil, err
	}
	if err := f.take("endOffset", &t.EndOffset); err != nil {
		return nil, err
	}
	if f.isString("text") {
		if err := f.take("text", &t.Text); err != nil {
			return nil, err
		}
	}
	if err := f.take("globalOffsets", &t.GlobalOffsets); err != nil {
		return nil, err
	}
	t.load(res, f)
	return t, nil
}

// Classification carries only labels or a free value (choices, rating,
// textarea), no geometry.
type Classification struct {
	Base
}

func NewClassification() *Classification {
	return &Classification{Base: newBase("")}
}

func (c *Classification) Kind() Kind { return KindClassification }

func (c *Classification) SetProperty(name string, value any) error {
	return setProperty(c, name, value, nil)
}

func (c *Classification) Serialize() Result {
	return c.result(nil)
}

func decodeClassification(res Result, f fields) (Region, error) {
	c := &Classification{}
	c.load(res, f)
	return c, nil
}
