package annotation

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Meta struct {
		Description string `yaml:"description"`
		Instruction string `yaml:"instruction"`
	} `yaml:"meta"`
	Mode        string                    `yaml:"mode"`
	Language    string                    `yaml:"language"`
	Database    string                    `yaml:"database"`
	Interfaces  []string                  `yaml:"interfaces"`
	Controls    map[string]*ConfigControl `yaml:"controls"`
	Hotkeys     map[string]string         `yaml:"hotkeys"`
	Submission  ConfigSubmission          `yaml:"submission"`
	Autosave    ConfigAutosave            `yaml:"autosave"`
	Predictions ConfigPredictions         `yaml:"predictions"`
	Viewport    ConfigViewport            `yaml:"viewport"`
}

type ConfigControl struct {
	Name        string                  `yaml:"name"`
	Type        string                  `yaml:"type"`
	Object      string                  `yaml:"object"`
	Preset      string                  `yaml:"preset"`
	StrokeWidth float64                 `yaml:"stroke_width"`
	Labels      map[string]*ConfigLabel `yaml:"labels"`
}

type ConfigLabel struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Examples    []string `yaml:"examples"`
}

type ConfigSubmission struct {
	MinDelay  time.Duration `yaml:"min_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
	DenyEmpty bool          `yaml:"deny_empty"`
}

type ConfigAutosave struct {
	Interval time.Duration `yaml:"interval"`
}

type ConfigPredictions struct {
	ShowCollaborative bool   `yaml:"show_collaborative"`
	Interactive       bool   `yaml:"interactive"`
	ModelVersion      string `yaml:"model_version"`
	AutoAccept        bool   `yaml:"auto_accept"`
}

type ConfigViewport struct {
	MinZoom  float64 `yaml:"min_zoom"`
	MaxZoom  float64 `yaml:"max_zoom"`
	ZoomStep float64 `yaml:"zoom_step"`
}

// SampleConfig is written by `marcador init`.
const SampleConfig = `meta:
  description: "Sample region annotation project."
  instruction: |
    Draw a **box** around every vehicle.
mode: stream
language: en
database: annotations.db
interfaces:
  - submit
  - update
  - skip
  - postpone
controls:
  label:
    type: rectanglelabels
    object: image
    labels:
      car: { name: "Car" }
      truck: { name: "Truck" }
  quality:
    type: choices
    object: image
    preset: boolean
submission:
  min_delay: 200ms
  max_delay: 5s
autosave:
  interval: 30s
`

func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML project config and fills in the defaults.
func ParseConfig(data []byte) (*Config, error) {
	var ret Config
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return nil, err
	}
	switch ret.Mode {
	case "":
		ret.Mode = "stream"
	case "stream", "explorer":
	default:
		return nil, fmt.Errorf("unknown mode %q, expected stream or explorer", ret.Mode)
	}
	if ret.Language == "" {
		ret.Language = "en"
	}
	if ret.Submission.MinDelay == 0 {
		ret.Submission.MinDelay = 200 * time.Millisecond
	}
	if ret.Submission.MaxDelay == 0 {
		ret.Submission.MaxDelay = 5 * time.Second
	}
	if ret.Submission.MaxDelay < ret.Submission.MinDelay {
		return nil, fmt.Errorf("submission max_delay %s is below min_delay %s", ret.Submission.MaxDelay, ret.Submission.MinDelay)
	}
	if ret.Viewport.MinZoom == 0 {
		ret.Viewport.MinZoom = 0.1
	}
	if ret.Viewport.MaxZoom == 0 {
		ret.Viewport.MaxZoom = 20
	}
	if ret.Viewport.ZoomStep == 0 {
		ret.Viewport.ZoomStep = 1.2
	}
	if len(ret.Controls) == 0 {
		return nil, fmt.Errorf("no controls specified")
	}
	for name, control := range ret.Controls {
		if control.Name == "" {
			control.Name = name
		}
		if control.Type == "" {
			return nil, fmt.Errorf("control %s does not have a type", name)
		}
		if control.Object == "" {
			control.Object = "image"
		}
		if control.Labels == nil && control.Preset != "" {
			control.Labels = getLabelsFromPreset(control.Preset)
		}
		if control.Labels == nil && control.Type != "choices" {
			continue
		}
		if control.Labels == nil {
			return nil, fmt.Errorf("control %s does not have any labels or a compatible preset", name)
		}
	}
	return &ret, nil
}

// LabelNames returns the label values of a control in a stable order.
func (c *ConfigControl) LabelNames() []string {
	names := make([]string, 0, len(c.Labels))
	for value := range c.Labels {
		names = append(names, value)
	}
	sort.Strings(names)
	return names
}

func getLabelsFromPreset(preset string) map[string]*ConfigLabel {
	switch preset {
	case "boolean":
		return map[string]*ConfigLabel{
			"true": {
				Name: "Yes",
			},
			"false": {
				Name: "No",
			},
		}
	case "rotation":
		return map[string]*ConfigLabel{
			"ok": {
				Name:        "OK",
				Description: "Not rotated",
			},
			"h_inv": {
				Name:        "Invert X",
				Description: "Invert in horizontal axis",
			},
			"v_inv": {
				Name:        "Invert Y",
				Description: "Invert in vertical axis",
			},
			"+90": {
				Name:        "+90deg",
				Description: "Rotate 90 degrees horary",
			},
			"-90": {
				Name:        "-90deg",
				Description: "Rotate 90 degrees antihorary",
			},
			"180": {
				Name:        "180deg",
				Description: "Rotate 180 degrees",
			},
		}
	default:
		return nil
	}
}
