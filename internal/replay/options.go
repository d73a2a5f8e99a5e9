package replay

import (
	"log"

	"github.com/lewtec/marcador/annotation"
	"github.com/lewtec/marcador/internal/annotations"
	"github.com/lewtec/marcador/internal/hotkey"
	"github.com/lewtec/marcador/internal/region"
	"github.com/lewtec/marcador/internal/session"
)

// SessionOptions maps a project config to the options of an editor session.
func SessionOptions(cfg *annotation.Config, keymap *hotkey.Keymap) session.Options {
	interfaces := append([]string(nil), cfg.Interfaces...)
	if cfg.Submission.DenyEmpty {
		interfaces = append(interfaces, session.InterfaceDenyEmpty)
	}
	return session.Options{
		Mode:                      session.Mode(cfg.Mode),
		Interfaces:                interfaces,
		MinSubmitDelay:            cfg.Submission.MinDelay,
		MaxSubmitDelay:            cfg.Submission.MaxDelay,
		ShowCollabPredictions:     cfg.Predictions.ShowCollaborative,
		InteractivePreannotations: cfg.Predictions.Interactive,
		AutoAcceptSuggestions:     cfg.Predictions.AutoAccept,
		ModelVersion:              cfg.Predictions.ModelVersion,
		Instruction:               cfg.Meta.Instruction,
		Validator:                 LabelValidator(cfg),
		Keymap:                    keymap,
	}
}

// LabelValidator rejects regions carrying a label their control does not
// declare. Controls without labels accept anything.
func LabelValidator(cfg *annotation.Config) annotations.Validator {
	return func(regions []region.Region) bool {
		for _, r := range regions {
			b := r.Common()
			control, ok := cfg.Controls[b.FromName]
			if !ok || len(control.Labels) == 0 {
				continue
			}
			for _, label := range b.Labels {
				if _, ok := control.Labels[label]; !ok {
					log.Printf("replay: region %s has label %q unknown to %s", r.ID(), label, b.FromName)
					return false
				}
			}
		}
		return true
	}
}
