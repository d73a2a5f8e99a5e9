package syncadapter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lewtec/marcador/internal/domain"
	"github.com/lewtec/marcador/internal/region"
	"github.com/lewtec/marcador/internal/session"
)

// PrepareData builds the payload sent for a submission or a draft.
//
// Lead time adds the time already stored on the annotation (not for new
// drafts), the time stored on its draft and the time spent since loading.
// started_at is pushed back by the draft lead time but never before the
// draft was created.
func PrepareData(sub *session.Submission, isNewDraft, includeID bool) domain.AnnotationInput {
	var submitted, drafted float64
	if !isNewDraft {
		submitted = sub.LeadTime
	}
	if sub.Draft != nil {
		drafted = sub.Draft.LeadTime
	}

	result := sub.Result
	if isNewDraft {
		result = sub.DraftResult
	}
	if result == nil {
		result = []region.Result{}
	}

	in := domain.AnnotationInput{
		Result:    result,
		LeadTime:  submitted + drafted + sub.SessionSeconds(),
		DraftID:   sub.DraftID,
		UniqueID:  sub.UniqueLockID,
		StartedAt: startedAt(sub),
	}
	in.ParentPrediction, _ = domain.ParseID(sub.ParentPrediction)
	in.ParentAnnotation, _ = domain.ParseID(sub.ParentAnnotation)

	if includeID && (!sub.UserGenerate || sub.SentUserGenerate) {
		in.ID, _ = domain.ParseID(sub.PK)
	}
	return in
}

func startedAt(sub *session.Submission) time.Time {
	if sub.Draft == nil {
		return sub.LoadedDate
	}
	adjusted := sub.TakenAt.Add(-time.Duration(sub.Draft.LeadTime * float64(time.Second)))
	if adjusted.Before(sub.Draft.CreatedAt) {
		return sub.Draft.CreatedAt
	}
	return adjusted
}

// withExtra merges free form fields into the payload. Extra keys win.
func withExtra(in domain.AnnotationInput, extra map[string]any) (any, error) {
	if len(extra) == 0 {
		return in, nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("while encoding payload: %w", err)
	}
	body := map[string]any{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("while encoding payload: %w", err)
	}
	for k, v := range extra {
		body[k] = v
	}
	return body, nil
}
