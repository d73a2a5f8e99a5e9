package syncadapter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/region"
	"github.com/lewtec/marcador/internal/session"
)

func TestPrepareData(t *testing.T) {
	loaded := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	taken := loaded.Add(30 * time.Second)
	submitted := []region.Result{{ID: "a"}}
	drafted := []region.Result{{ID: "a"}, {ID: "b"}}

	base := func() *session.Submission {
		return &session.Submission{
			PK:               "12",
			DraftID:          5,
			UniqueLockID:     "lock",
			ParentPrediction: "3",
			LeadTime:         100,
			LoadedDate:       loaded,
			TakenAt:          taken,
			Result:           submitted,
			DraftResult:      drafted,
		}
	}

	t.Run("submission without draft", func(t *testing.T) {
		in := PrepareData(base(), false, false)
		if in.LeadTime != 130 {
			t.Errorf("LeadTime = %v, want 130", in.LeadTime)
		}
		if !in.StartedAt.Equal(loaded) {
			t.Errorf("StartedAt = %v, want %v", in.StartedAt, loaded)
		}
		if len(in.Result) != 1 {
			t.Errorf("Result = %+v, want the submitted result", in.Result)
		}
		if in.ID != 0 {
			t.Errorf("ID = %d, want 0 when not requested", in.ID)
		}
		if in.ParentPrediction != 3 || in.DraftID != 5 || in.UniqueID != "lock" {
			t.Errorf("input = %+v", in)
		}
	})

	t.Run("new draft ignores stored lead time", func(t *testing.T) {
		in := PrepareData(base(), true, false)
		if in.LeadTime != 30 {
			t.Errorf("LeadTime = %v, want 30", in.LeadTime)
		}
		if len(in.Result) != 2 {
			t.Errorf("Result = %+v, want the draft result", in.Result)
		}
	})

	t.Run("draft lead time moves started_at back", func(t *testing.T) {
		sub := base()
		sub.Draft = &domain.Draft{LeadTime: 10, CreatedAt: loaded.Add(-time.Hour)}
		in := PrepareData(sub, false, false)
		if in.LeadTime != 140 {
			t.Errorf("LeadTime = %v, want 140", in.LeadTime)
		}
		if want := taken.Add(-10 * time.Second); !in.StartedAt.Equal(want) {
			t.Errorf("StartedAt = %v, want %v", in.StartedAt, want)
		}
	})

	t.Run("started_at is never before the draft", func(t *testing.T) {
		sub := base()
		created := taken.Add(-5 * time.Second)
		sub.Draft = &domain.Draft{LeadTime: 60, CreatedAt: created}
		in := PrepareData(sub, false, false)
		if !in.StartedAt.Equal(created) {
			t.Errorf("StartedAt = %v, want %v", in.StartedAt, created)
		}
	})

	t.Run("id", func(t *testing.T) {
		tests := []struct {
			name             string
			userGenerate     bool
			sentUserGenerate bool
			want             int64
		}{
			{"server annotation", false, false, 12},
			{"sent user annotation", true, true, 12},
			{"unsent user annotation", true, false, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				sub := base()
				sub.UserGenerate = tt.userGenerate
				sub.SentUserGenerate = tt.sentUserGenerate
				if got := PrepareData(sub, false, true).ID; got != tt.want {
					t.Errorf("ID = %d, want %d", got, tt.want)
				}
			})
		}
	})

	t.Run("empty result is a list", func(t *testing.T) {
		sub := base()
		sub.Result = nil
		data, err := json.Marshal(PrepareData(sub, false, false))
		if err != nil {
			t.Fatal(err)
		}
		var body map[string]any
		json.Unmarshal(data, &body)
		if _, ok := body["result"].([]any); !ok {
			t.Errorf("result = %v, want an empty list", body["result"])
		}
	})
}

func TestWithExtra(t *testing.T) {
	body, err := withExtra(domain.AnnotationInput{LeadTime: 1}, map[string]any{"was_postponed": true})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := body.(map[string]any)
	if !ok {
		t.Fatalf("body = %T, want a map", body)
	}
	if m["was_postponed"] != true || m["lead_time"] != 1.0 {
		t.Errorf("body = %v", m)
	}
}
