package replay

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/geometry"
	"github.com/lewtec/marcador/internal/region"
	"github.com/lewtec/marcador/internal/repository"
)

type fixture struct {
	runner *Runner
	tasks  *repository.TaskRepository
	anns   *repository.AnnotationRepository
	drafts *repository.DraftRepository
	ids    []int64
}

func setup(t *testing.T, ntasks int) *fixture {
	t.Helper()
	db := repository.SetupTestDB(t)
	t.Cleanup(func() { repository.CleanupTestDB(t, db) })

	cfg, err := annotation.ParseConfig([]byte(annotation.SampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	cfg.Submission.MinDelay = time.Millisecond
	cfg.Autosave.Interval = 0

	f := &fixture{
		tasks:  repository.NewTaskRepository(db),
		anns:   repository.NewAnnotationRepository(db),
		drafts: repository.NewDraftRepository(db),
	}
	ctx := context.Background()
	for i := 0; i < ntasks; i++ {
		task, err := f.tasks.Create(ctx, json.RawMessage(`{"image":"a.png","width":200,"height":100}`))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		f.ids = append(f.ids, task.ID)
	}
	f.runner, err = New(cfg, repository.NewBackend(db, "alice"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(f.runner.Close)
	return f
}

func mustParse(t *testing.T, src string) *Script {
	t.Helper()
	script, err := ParseScript([]byte(src))
	if err != nil {
		t.Fatalf("ParseScript() error = %v", err)
	}
	return script
}

const drawCar = `
steps:
  - load: next
  - tool: rectangle
    control: label
    labels: [car]
  - drag: [[20, 10], [60, 30], [100, 60]]
`

func TestRun_DrawAndSubmit(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()

	sum, err := f.runner.Run(ctx, mustParse(t, drawCar+"  - do: submit\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Steps != 4 || sum.Ignored != 0 {
		t.Errorf("Summary = %+v, want 4 steps and none ignored", sum)
	}
	if sum.TaskID != f.ids[1] {
		t.Errorf("TaskID = %d, want the next task %d", sum.TaskID, f.ids[1])
	}

	stored, err := f.anns.ListForTask(ctx, f.ids[0])
	if err != nil {
		t.Fatalf("ListForTask() error = %v", err)
	}
	if len(stored) != 1 || len(stored[0].Result) != 1 {
		t.Fatalf("stored annotations = %+v", stored)
	}
	res := stored[0].Result[0]
	if res.Type != "rectanglelabels" || res.FromName != "label" || res.ToName != "image" {
		t.Errorf("result = %+v", res)
	}
	var value struct {
		X, Y, Width, Height float64
		Labels              []string `json:"rectanglelabels"`
	}
	if err := json.Unmarshal(res.Value, &value); err != nil {
		t.Fatalf("value %s: %v", res.Value, err)
	}
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-6 }
	if !near(value.X, 10) || !near(value.Y, 10) || !near(value.Width, 40) || !near(value.Height, 50) {
		t.Errorf("value = %+v, want a 10,10 40x50 box in percent", value)
	}
	if len(value.Labels) != 1 || value.Labels[0] != "car" {
		t.Errorf("labels = %v", value.Labels)
	}
}

func TestRun_UnknownLabelIsRefused(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	script := mustParse(t, `
steps:
  - load: next
  - tool: rectangle
    control: label
    labels: [bike]
  - drag: [[0, 0], [50, 50]]
  - do: submit
`)
	sum, err := f.runner.Run(ctx, script)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Ignored != 1 {
		t.Errorf("Ignored = %d, want the submit to be refused", sum.Ignored)
	}
	if n, _ := f.anns.CountByUser(ctx, "alice"); n != 0 {
		t.Errorf("CountByUser() = %d, want 0", n)
	}
}

func TestRun_UndoRedo(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	sum, err := f.runner.Run(ctx, mustParse(t, drawCar+"  - key: ctrl+z\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Regions != 0 {
		t.Errorf("Regions = %d after undo, want 0", sum.Regions)
	}

	sum, err = f.runner.Run(ctx, mustParse(t, "steps:\n  - do: redo\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Regions != 1 || sum.Ignored != 0 {
		t.Errorf("Summary = %+v, want the box back", sum)
	}
}

func TestRun_Postpone(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()

	sum, err := f.runner.Run(ctx, mustParse(t, drawCar+"  - do: postpone\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.TaskID != f.ids[1] {
		t.Errorf("TaskID = %d, want %d", sum.TaskID, f.ids[1])
	}
	drafts, err := f.drafts.ListForTask(ctx, f.ids[0])
	if err != nil {
		t.Fatalf("ListForTask() error = %v", err)
	}
	if len(drafts) != 1 || !drafts[0].WasPostponed || len(drafts[0].Result) != 1 {
		t.Errorf("drafts = %+v, want one postponed draft with the box", drafts)
	}
}

func TestRun_SkipAndQueueEnd(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()

	script := mustParse(t, `
steps:
  - load: next
  - do: skip
    comment: blurry
`)
	sum, err := f.runner.Run(ctx, script)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !sum.NoTask {
		t.Errorf("Summary = %+v, want the queue to be exhausted", sum)
	}
	stored, _ := f.anns.ListForTask(ctx, f.ids[0])
	if len(stored) != 1 || !stored[0].WasCancelled {
		t.Errorf("stored annotations = %+v, want one cancelled annotation", stored)
	}
	if len(sum.Toasts) == 0 {
		t.Error("expected toasts to be recorded")
	}
}

func TestRun_BadTaskID(t *testing.T) {
	f := setup(t, 1)
	_, err := f.runner.Run(context.Background(), mustParse(t, "steps:\n  - load: abc\n"))
	if !errors.Is(err, ErrBadScript) {
		t.Errorf("Run() error = %v, want ErrBadScript", err)
	}
}

func TestParseScript(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"empty", "", false},
		{"stage", "stage: {width: 640, height: 480}\nsteps: [{load: next}]", false},
		{"zero stage", "stage: {width: 0, height: 480}", true},
		{"two actions", "steps: [{load: next, do: submit}]", true},
		{"no action", "steps: [{comment: hi}]", true},
		{"short drag", "steps: [{drag: [[1, 2]]}]", true},
		{"bad point", "steps: [{click: [[1, 2, 3]]}]", true},
		{"unknown action", "steps: [{do: dance}]", true},
		{"button without name", "steps: [{do: button}]", true},
		{"button", "steps: [{do: button, button: approve}]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tt.src))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseScript() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPointYAML(t *testing.T) {
	script := mustParse(t, "steps: [{double_click: [3.5, 4]}]")
	got := geometry.Point(*script.Steps[0].DoubleClick)
	if got.X != 3.5 || got.Y != 4 {
		t.Errorf("point = %+v", got)
	}
}

func TestLabelValidator(t *testing.T) {
	cfg, err := annotation.ParseConfig([]byte(annotation.SampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	valid := LabelValidator(cfg)

	known := region.NewRectangle(geometry.BBox{Width: 1, Height: 1})
	known.Common().FromName = "label"
	known.Common().Labels = []string{"truck"}
	if !valid([]region.Region{known}) {
		t.Error("a declared label should pass")
	}

	other := region.NewRectangle(geometry.BBox{Width: 1, Height: 1})
	other.Common().FromName = "undeclared"
	other.Common().Labels = []string{"anything"}
	if !valid([]region.Region{other}) {
		t.Error("regions of unknown controls are not checked")
	}

	known.Common().Labels = []string{"plane"}
	if valid([]region.Region{known, other}) {
		t.Error("an undeclared label should fail")
	}
}

func TestNaturalSize(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "x.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 50, 40))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r := &Runner{ImagesDir: dir}
	tests := []struct {
		name string
		data string
		want annotation.ImageSize
	}{
		{"recorded size", `{"image":"x.png","width":640,"height":480}`, annotation.ImageSize{Width: 640, Height: 480}},
		{"measured", `{"image":"x.png"}`, annotation.ImageSize{Width: 50, Height: 40}},
		{"missing image", `{"image":"y.png"}`, annotation.ImageSize{Width: 100, Height: 100}},
		{"not an object", `[1]`, annotation.ImageSize{Width: 100, Height: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.naturalSize(&domain.Task{Data: json.RawMessage(tt.data)})
			if got != tt.want {
				t.Errorf("naturalSize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
