package logic

import "github.com/patrickwarner/billboardserve/internal/models"

// TraceStep records the billboards still in play after a selection stage.
type TraceStep struct {
	Stage        string            `json:"stage"`
	BillboardIDs []int             `json:"billboard_ids"`
	Details      map[string]string `json:"details,omitempty"`
}

// SelectionTrace captures the ordered list of steps performed by a query.
type SelectionTrace struct {
	Steps []TraceStep `json:"steps"`
}

// AddStep appends a trace entry for the given stage using the supplied billboards.
func (t *SelectionTrace) AddStep(stage string, billboards []models.Billboard) {
	t.AddStepWithDetails(stage, billboards, nil)
}

// AddStepWithDetails appends a trace entry with additional details about filtering.
func (t *SelectionTrace) AddStepWithDetails(stage string, billboards []models.Billboard, details map[string]string) {
	if t == nil {
		return
	}
	step := TraceStep{Stage: stage, Details: details, BillboardIDs: make([]int, 0, len(billboards))}
	for _, b := range billboards {
		step.BillboardIDs = append(step.BillboardIDs, b.ID)
	}
	t.Steps = append(t.Steps, step)
}
