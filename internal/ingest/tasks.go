package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/lewtec/marcador/internal/domain"
)

// TaskInput is one entry of a task file.
type TaskInput struct {
	Data          json.RawMessage     `json:"data"`
	Predictions   []domain.Prediction `json:"predictions"`
	AllowPostpone *bool               `json:"allow_postpone"`
}

// Tasks creates the tasks listed in a JSON array read from r.
func Tasks(ctx context.Context, repo domain.TaskRepository, r io.Reader) (*Result, error) {
	var inputs []TaskInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, fmt.Errorf("while decoding task file: %w", err)
	}
	ret := &Result{}
	for i, in := range inputs {
		if len(in.Data) == 0 || string(in.Data) == "null" {
			log.Printf("ingest: task %d has no data, skipping", i+1)
			ret.Failed++
			continue
		}
		task, err := repo.Create(ctx, in.Data)
		if err != nil {
			return nil, fmt.Errorf("while creating task %d: %w", i+1, err)
		}
		for _, p := range in.Predictions {
			if _, err := repo.AddPrediction(ctx, task.ID, p); err != nil {
				return nil, fmt.Errorf("while adding prediction to task %d: %w", task.ID, err)
			}
		}
		if in.AllowPostpone != nil {
			if err := repo.SetAllowPostpone(ctx, task.ID, in.AllowPostpone); err != nil {
				return nil, err
			}
		}
		ret.Created++
	}
	log.Printf("ingest: %d tasks created from task file", ret.Created)
	return ret, nil
}
