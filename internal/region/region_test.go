package region

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/lewtec/marcador/internal/geometry"
)

type fakeOwner struct {
	readOnly bool
	changed  []string
}

func (o *fakeOwner) ReadOnly() bool          { return o.readOnly }
func (o *fakeOwner) RegionChanged(id string) { o.changed = append(o.changed, id) }

type fakeRenderer struct {
	updates  int
	released bool
}

func (r *fakeRenderer) Update(Result) { r.updates++ }
func (r *fakeRenderer) Release()      { r.released = true }

func result(id, typ, value string) Result {
	return Result{ID: id, Type: typ, Value: json.RawMessage(value), FromName: "label", ToName: "image"}
}

func TestDecode_Dispatch(t *testing.T) {
	tests := []struct {
		name string
		in   Result
		want Kind
	}{
		{"rectangle", result("r1", "rectanglelabels", `{"x":10,"y":10,"width":40,"height":40,"rotation":0,"rectanglelabels":["Car"]}`), KindRectangle},
		{"ellipse", result("e1", "ellipselabels", `{"x":50,"y":50,"radiusX":5,"radiusY":3,"rotation":0}`), KindEllipse},
		{"polygon", result("p1", "polygonlabels", `{"points":[[1,2],[3,4],[5,1]],"polygonlabels":["Roof"]}`), KindPolygon},
		{"keypoint", result("k1", "keypointlabels", `{"x":1,"y":2,"width":0.5}`), KindKeyPoint},
		{"brush rle", result("b1", "brushlabels", `{"format":"rle","rle":[0,1,2],"brushlabels":["Sky"]}`), KindBrush},
		{"brush touches", result("b2", "brushlabels", `{"touches":[{"type":"add","points":[1,1,2,2],"brushSize":10}]}`), KindBrush},
		{"bitmask", result("m1", "bitmasklabels", `{"imageDataURL":"data:image/png;base64,AAAA"}`), KindBitmask},
		{"audio", result("a1", "labels", `{"start":1.5,"end":3.25,"channel":1,"labels":["Speech"]}`), KindAudio},
		{"timeline", result("t1", "timelinelabels", `{"ranges":[{"start":3,"end":9}],"timelinelabels":["Run"]}`), KindTimeline},
		{"video", result("v1", "videorectangle", `{"framesCount":100,"sequence":[{"frame":1,"enabled":true,"rotation":0,"x":1,"y":2,"width":3,"height":4,"time":0.04}]}`), KindVideoRectangle},
		{"html span", result("h1", "hypertextlabels", `{"start":"/p[1]/text()[1]","end":"/p[1]/text()[1]","startOffset":0,"endOffset":5,"globalOffsets":{"start":0,"end":5}}`), KindRichText},
		{"text span", result("s1", "labels", `{"start":0,"end":5,"text":"hello","labels":["Greeting"]}`), KindRichText},
		{"choices", result("c1", "choices", `{"choices":["Cat"]}`), KindClassification},
		{"rating", result("c2", "rating", `{"rating":4}`), KindClassification},
		{"empty value", result("c3", "choices", `{}`), KindClassification},
		{"unknown legacy shape", result("c4", "legacy", `{"foo":1,"bar":"baz"}`), KindClassification},
		{"unreadable value", result("c5", "legacy", `[1,2,3]`), KindClassification},
		{"rectangle with broken size", result("c6", "rectanglelabels", `{"x":1,"y":1,"width":"wide","height":2}`), KindClassification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.in)
			if got == nil {
				t.Fatal("Decode() returned nil")
			}
			if got.Kind() != tt.want {
				t.Errorf("Decode() kind = %s, want %s", got.Kind(), tt.want)
			}
			if got.ID() != tt.in.ID {
				t.Errorf("Decode() id = %q, want %q", got.ID(), tt.in.ID)
			}
		})
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	score := 0.87
	regions := []Region{
		NewRectangle(geometry.BBox{X: 10.125, Y: 10, Width: 40, Height: 40.5}),
		NewEllipse(geometry.Point{X: 20, Y: 30}, 5, 7),
		func() Region {
			p := NewPolygon()
			p.AddPoint(geometry.Point{X: 1, Y: 1})
			p.AddPoint(geometry.Point{X: 9, Y: 1})
			p.AddPoint(geometry.Point{X: 5, Y: 8.333333333333334})
			p.Close()
			return p
		}(),
		NewKeyPoint(geometry.Point{X: 33.3, Y: 66.6}, 1),
		func() Region {
			b := NewBrush()
			b.BeginTouch(TouchAdd, 12)
			b.AddPoint(geometry.Point{X: 1, Y: 2})
			b.AddPoint(geometry.Point{X: 3, Y: 4})
			return b
		}(),
		NewAudio(0.5, 2.75, 0),
		NewTimeline(FrameRange{Start: 4, End: 20}),
		func() Region {
			v := NewVideoRectangle(Keyframe{Frame: 1, X: 1, Y: 1, Width: 10, Height: 10})
			v.AddKeyframe(Keyframe{Frame: 10, Enabled: false, X: 5, Y: 5, Width: 10, Height: 10})
			return v
		}(),
		NewClassification(),
		Decode(result("h1", "hypertextlabels", `{"start":"/p[1]","end":"/p[2]","startOffset":3,"endOffset":1,"hypertextlabels":["X"]}`)),
		Decode(result("m1", "bitmasklabels", `{"imageDataURL":"data:,","extra":{"nested":[1,2]}}`)),
		Decode(result("c4", "legacy", `{"foo":1,"bar":"baz"}`)),
	}

	for _, r := range regions {
		b := r.Common()
		if b.Type == "" {
			b.Type = string(r.Kind()) + "labels"
			b.Labels = []string{"A", "B"}
			b.LabelsKey = b.Type
		}
		b.FromName, b.ToName = "tag", "img"
		b.Origin = "manual"
		b.Score = &score

		t.Run(string(r.Kind()), func(t *testing.T) {
			first := r.Serialize()
			back := Decode(first)
			if back.Kind() != r.Kind() {
				t.Fatalf("Decode(Serialize()) kind = %s, want %s", back.Kind(), r.Kind())
			}
			second := back.Serialize()
			if !reflect.DeepEqual(first, second) {
				t.Errorf("round trip changed the result:\n first: %+v %s\nsecond: %+v %s", first, first.Value, second, second.Value)
			}
		})
	}
}

func TestSetProperty(t *testing.T) {
	owner := &fakeOwner{}
	rend := &fakeRenderer{}
	r := NewRectangle(geometry.BBox{X: 1, Y: 1, Width: 5, Height: 5})
	r.Attach("ann", owner)
	r.SetRenderer(rend)

	if err := r.SetProperty("x", 12.5); err != nil {
		t.Fatalf("SetProperty(x) error = %v", err)
	}
	if r.X != 12.5 {
		t.Errorf("X = %v, want 12.5", r.X)
	}
	if rend.updates != 1 || len(owner.changed) != 1 {
		t.Errorf("updates = %d, changes = %d; want 1, 1", rend.updates, len(owner.changed))
	}

	if err := r.SetProperty("colour", "red"); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("SetProperty(colour) error = %v, want ErrUnknownProperty", err)
	}
	if err := r.SetProperty("width", -3); !errors.Is(err, ErrBadValue) {
		t.Errorf("SetProperty(width, -3) error = %v, want ErrBadValue", err)
	}
	if r.Width != 5 {
		t.Errorf("failed SetProperty changed width to %v", r.Width)
	}
	if len(owner.changed) != 1 {
		t.Errorf("failed SetProperty notified the owner")
	}

	t.Run("read only annotation", func(t *testing.T) {
		owner.readOnly = true
		defer func() { owner.readOnly = false }()
		if err := r.SetProperty("x", 99); err != nil {
			t.Errorf("SetProperty() on read only error = %v, want nil", err)
		}
		if ok, err := r.SetBBox(geometry.BBox{Width: 1, Height: 1}); ok || err != nil {
			t.Errorf("SetBBox() on read only = %v, %v", ok, err)
		}
		if r.X != 12.5 {
			t.Errorf("read only region moved to %v", r.X)
		}
		r.Select()
		if !r.IsSelected() {
			t.Error("selection should still work on read only regions")
		}
	})

	t.Run("locked and hidden are independent", func(t *testing.T) {
		r.SetLocked(true)
		r.SetHidden(true)
		if !r.IsLocked() || !r.IsHidden() {
			t.Fatal("flags did not stick")
		}
		r.SetProperty("y", 50)
		if r.Y != 1 {
			t.Errorf("locked region moved to y=%v", r.Y)
		}
		r.SetHidden(false)
		if !r.IsLocked() {
			t.Error("unhiding unlocked the region")
		}
		r.SetLocked(false)
	})

	t.Run("delete releases the renderer", func(t *testing.T) {
		r.Delete()
		if !rend.released {
			t.Error("renderer was not released")
		}
		if r.Editable() {
			t.Error("deleted region is still editable")
		}
		r.Delete()
	})
}

func TestVideoRectangle_ShapeAt(t *testing.T) {
	v := NewVideoRectangle(Keyframe{Frame: 10, X: 0, Y: 0, Width: 10, Height: 10})
	v.AddKeyframe(Keyframe{Frame: 20, Enabled: false, X: 10, Y: 20, Width: 10, Height: 10})

	tests := []struct {
		frame   int
		want    geometry.BBox
		visible bool
	}{
		{5, geometry.BBox{}, false},
		{10, geometry.BBox{X: 0, Y: 0, Width: 10, Height: 10}, true},
		{15, geometry.BBox{X: 5, Y: 10, Width: 10, Height: 10}, true},
		{20, geometry.BBox{X: 10, Y: 20, Width: 10, Height: 10}, true},
		{25, geometry.BBox{}, false},
	}
	for _, tt := range tests {
		got, visible := v.ShapeAt(tt.frame)
		if visible != tt.visible || got != tt.want {
			t.Errorf("ShapeAt(%d) = %+v, %v; want %+v, %v", tt.frame, got, visible, tt.want, tt.visible)
		}
	}

	v.ToggleLifespan(20)
	if _, visible := v.ShapeAt(25); !visible {
		t.Error("enabling the last keyframe should extend the lifespan")
	}
	if ok, err := v.RemoveKeyframe(99); ok || !errors.Is(err, ErrBadValue) {
		t.Errorf("RemoveKeyframe(99) = %v, %v", ok, err)
	}
}

func TestCleanIDAndClone(t *testing.T) {
	if got := CleanID("abc#2"); got != "abc" {
		t.Errorf("CleanID() = %q", got)
	}
	r := Decode(result("abc#2", "rectanglelabels", `{"x":1,"y":1,"width":2,"height":2,"rectanglelabels":["Car"]}`))
	c := Clone(r)
	if c.ID() == r.ID() || c.Kind() != KindRectangle {
		t.Errorf("Clone() = %s %s", c.ID(), c.Kind())
	}
	if !c.Common().HasLabel("Car") {
		t.Error("Clone() lost labels")
	}
}

func TestVariantsExposeTheirBase(t *testing.T) {
	rect := NewRectangle(geometry.BBox{Width: 1, Height: 1})
	ellipse := NewEllipse(geometry.Point{}, 1, 1)
	poly := NewPolygon()
	kp := NewKeyPoint(geometry.Point{}, 1)
	brush := NewBrush()
	audio := NewAudio(0, 1, 0)
	tl := NewTimeline(FrameRange{Start: 1, End: 2})
	video := NewVideoRectangle(Keyframe{Frame: 1, Width: 1, Height: 1})
	cls := NewClassification()

	for _, tc := range []struct {
		r    Region
		base *Base
	}{
		{rect, &rect.Base},
		{ellipse, &ellipse.Base},
		{poly, &poly.Base},
		{kp, &kp.Base},
		{brush, &brush.Base},
		{audio, &audio.Base},
		{tl, &tl.Base},
		{video, &video.Base},
		{cls, &cls.Base},
	} {
		t.Run(string(tc.r.Kind()), func(t *testing.T) {
			if tc.r.Common() != tc.base {
				t.Error("Common() does not return the embedded base")
			}
			if tc.r.ID() == "" || tc.r.ID() != tc.base.ID() {
				t.Errorf("ID() = %q, base id %q", tc.r.ID(), tc.base.ID())
			}
		})
	}
}
