package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
)

func discriminators(recs []sseRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.discriminator
	}
	return out
}

func TestToSSERecordsFansOutPlanCreatedWithTitle(t *testing.T) {
	plan := &domain.Plan{ID: "p1", Title: "investigate pod crash"}
	be := domain.BufferedEvent{Sequence: 1, Event: domain.NewPlanCreated(plan, true)}

	recs := toSSERecords(be)

	require.Equal(t, []string{"title", "message", "plan"}, discriminators(recs))
	assert.Equal(t, "investigate pod crash", recs[0].payload.Text)
}

func TestToSSERecordsOmitsTitleWhenPlanHasNone(t *testing.T) {
	plan := &domain.Plan{ID: "p1"}
	be := domain.BufferedEvent{Sequence: 1, Event: domain.NewPlanCreated(plan, true)}

	recs := toSSERecords(be)

	require.Equal(t, []string{"message", "plan"}, discriminators(recs))
}

func TestToSSERecordsStepCompletedAlsoEmitsMessageWithResult(t *testing.T) {
	step := &domain.Step{ID: "s1", Status: domain.StepStatusCompleted, Result: "found 3 crashed pods"}
	be := domain.BufferedEvent{Sequence: 2, Event: domain.NewStepCompleted(step)}

	recs := toSSERecords(be)

	require.Equal(t, []string{"step", "message"}, discriminators(recs))
	assert.Equal(t, "found 3 crashed pods", recs[1].payload.Text)
}

func TestToSSERecordsStepStartedHasNoMessageFollowup(t *testing.T) {
	step := &domain.Step{ID: "s1", Status: domain.StepStatusRunning}
	be := domain.BufferedEvent{Sequence: 2, Event: domain.NewStepStarted(step)}

	recs := toSSERecords(be)

	assert.Equal(t, []string{"step"}, discriminators(recs))
}

func TestToSSERecordsDropsNonWhitelistedToolEvents(t *testing.T) {
	be := domain.BufferedEvent{Sequence: 3, Event: domain.NewToolCalling("internal_debug_tool", "fn", "{}")}
	assert.Empty(t, toSSERecords(be))
}

func TestToSSERecordsKeepsWhitelistedToolEvents(t *testing.T) {
	be := domain.BufferedEvent{Sequence: 3, Event: domain.NewToolCalling("shell", "run", "{}")}
	recs := toSSERecords(be)
	require.Equal(t, []string{"tool"}, discriminators(recs))
}

func TestToSSERecordsDoneMapsStraightThrough(t *testing.T) {
	be := domain.BufferedEvent{Sequence: 4, Event: domain.NewDone()}
	recs := toSSERecords(be)
	assert.Equal(t, []string{"done"}, discriminators(recs))
}
