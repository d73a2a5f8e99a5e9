package annotation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Sample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(SampleConfig), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Mode != "stream" {
		t.Errorf("Mode = %v, want stream", cfg.Mode)
	}
	if cfg.Submission.MinDelay != 200*time.Millisecond || cfg.Submission.MaxDelay != 5*time.Second {
		t.Errorf("Submission = %+v", cfg.Submission)
	}
	if cfg.Autosave.Interval != 30*time.Second {
		t.Errorf("Autosave.Interval = %v, want 30s", cfg.Autosave.Interval)
	}
	label := cfg.Controls["label"]
	if label == nil || label.Name != "label" {
		t.Fatalf("control label = %+v", label)
	}
	if got := strings.Join(label.LabelNames(), ","); got != "car,truck" {
		t.Errorf("LabelNames() = %v", got)
	}
	quality := cfg.Controls["quality"]
	if quality == nil || len(quality.Labels) != 2 || quality.Labels["true"].Name != "Yes" {
		t.Errorf("boolean preset not applied: %+v", quality)
	}
	if !strings.Contains(cfg.Meta.Instruction, "**box**") {
		t.Errorf("Instruction = %q", cfg.Meta.Instruction)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{"no controls", "mode: stream\n", "no controls"},
		{"bad mode", "mode: grid\ncontrols:\n  a: { type: choices, preset: boolean }\n", "unknown mode"},
		{"no type", "controls:\n  a: { object: image }\n", "does not have a type"},
		{"choices without labels", "controls:\n  a: { type: choices }\n", "does not have any labels"},
		{"delays", "submission: { min_delay: 2s, max_delay: 1s }\ncontrols:\n  a: { type: rectangle }\n", "below min_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.config))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("controls:\n  kp: { type: keypointlabels, stroke_width: 3 }\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Language != "en" || cfg.Viewport.MaxZoom != 20 || cfg.Viewport.ZoomStep != 1.2 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Controls["kp"].Object != "image" || cfg.Controls["kp"].StrokeWidth != 3 {
		t.Errorf("control = %+v", cfg.Controls["kp"])
	}
}
