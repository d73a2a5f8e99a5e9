package annotations

import (
	"errors"
	"fmt"

	"github.com/lewtec/marcador/internal/region"
)

// Relation directions.
const (
	DirectionRight = "right"
	DirectionLeft  = "left"
	DirectionBi    = "bi"
)

var ErrSelfRelation = errors.New("a region can not be related to itself")

// Relation links two regions by id.
type Relation struct {
	ID        string
	From      string
	To        string
	Direction string
	Labels    []string
	Visible   bool
}

// ToggleDirection cycles right -> left -> bi -> right.
func (r *Relation) ToggleDirection() {
	switch r.Direction {
	case DirectionRight:
		r.Direction = DirectionLeft
	case DirectionLeft:
		r.Direction = DirectionBi
	default:
		r.Direction = DirectionRight
	}
}

func (r *Relation) serialize() region.Result {
	res := region.Result{
		Type:      region.TypeRelation,
		FromID:    region.CleanID(r.From),
		ToID:      region.CleanID(r.To),
		Direction: r.Direction,
	}
	if len(r.Labels) > 0 {
		res.Labels = append([]string(nil), r.Labels...)
	}
	return res
}

func (r *Relation) touches(id string) bool {
	return region.CleanID(r.From) == region.CleanID(id) || region.CleanID(r.To) == region.CleanID(id)
}

func relationFromResult(res region.Result) (*Relation, error) {
	if res.FromID == "" || res.ToID == "" {
		return nil, fmt.Errorf("relation without ends: %w", ErrNotFound)
	}
	dir := res.Direction
	if dir == "" {
		dir = DirectionRight
	}
	return &Relation{
		ID:        region.NewID(),
		From:      res.FromID,
		To:        res.ToID,
		Direction: dir,
		Labels:    append([]string(nil), res.Labels...),
		Visible:   true,
	}, nil
}
