// Package export writes tasks and their annotations out of the database.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"

	"github.com/go-git/go-billy/v6"
	"github.com/lewtec/marcador/internal/domain"
)

type Format string

const (
	// FormatJSON writes one JSON array with every task.
	FormatJSON Format = "json"
	// FormatJSONL writes one task per line.
	FormatJSONL Format = "jsonl"
)

// ParseFormat validates a format name. Empty means json.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatJSONL:
		return FormatJSONL, nil
	}
	return "", fmt.Errorf("unknown export format %q, expected json or jsonl", s)
}

// Record is a task as exported.
type Record struct {
	ID          int64               `json:"id"`
	Data        json.RawMessage     `json:"data"`
	Annotations []domain.Annotation `json:"annotations"`
	Predictions []domain.Prediction `json:"predictions,omitempty"`
}

type Options struct {
	Format Format
	// OnlyAnnotated leaves out tasks without a submitted, not cancelled annotation.
	OnlyAnnotated bool
	// WithPredictions includes model predictions.
	WithPredictions bool
}

// Export writes the tasks of repo to name inside fs and returns how many
// were written. The file is replaced only once everything was written.
func Export(ctx context.Context, repo domain.TaskRepository, fs billy.Filesystem, name string, opts Options) (int, error) {
	tasks, err := repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("while listing tasks: %w", err)
	}

	dir := path.Dir(name)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("while creating '%s': %w", dir, err)
	}
	f, err := fs.TempFile(dir, ".export-")
	if err != nil {
		return 0, err
	}
	tempFile := f.Name()
	fail := func(err error) (int, error) {
		f.Close()
		fs.Remove(tempFile)
		return 0, err
	}

	var records []Record
	enc := json.NewEncoder(f)
	count := 0
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		full, err := repo.Get(ctx, t.ID)
		if err != nil {
			return fail(fmt.Errorf("while loading task %d: %w", t.ID, err))
		}
		if full == nil {
			continue
		}
		if opts.OnlyAnnotated && !annotated(full) {
			continue
		}
		rec := Record{ID: full.ID, Data: full.Data, Annotations: full.Annotations}
		if rec.Annotations == nil {
			rec.Annotations = []domain.Annotation{}
		}
		if opts.WithPredictions {
			rec.Predictions = full.Predictions
		}
		count++
		if opts.Format == FormatJSONL {
			if err := enc.Encode(rec); err != nil {
				return fail(fmt.Errorf("while writing task %d: %w", t.ID, err))
			}
			continue
		}
		records = append(records, rec)
	}
	if opts.Format != FormatJSONL {
		if records == nil {
			records = []Record{}
		}
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fail(fmt.Errorf("while writing export: %w", err))
		}
	}
	if err := f.Close(); err != nil {
		fs.Remove(tempFile)
		return 0, err
	}
	if _, err := fs.Stat(name); err == nil {
		if err := fs.Remove(name); err != nil {
			fs.Remove(tempFile)
			return 0, err
		}
	}
	if err := fs.Rename(tempFile, name); err != nil {
		fs.Remove(tempFile)
		return 0, err
	}
	log.Printf("export: %d tasks written to %s", count, name)
	return count, nil
}

func annotated(t *domain.Task) bool {
	for _, a := range t.Annotations {
		if !a.WasCancelled {
			return true
		}
	}
	return false
}
