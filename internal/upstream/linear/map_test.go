package linear

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
)

func TestMapStatusFollowsWorkflowType(t *testing.T) {
	require.Equal(t, model.StatusOpen, mapStatus("backlog"))
	require.Equal(t, model.StatusOpen, mapStatus("unstarted"))
	require.Equal(t, model.StatusInProgress, mapStatus("started"))
	require.Equal(t, model.StatusClosed, mapStatus("completed"))
	require.Equal(t, model.StatusClosed, mapStatus("canceled"))
}

func TestMapPriorityNoPriorityBecomesDefault(t *testing.T) {
	require.Equal(t, model.DefaultPriority, mapPriority(0))
	require.Equal(t, model.Priority(0), mapPriority(1))
	require.Equal(t, model.Priority(3), mapPriority(4))
}

func TestToIssueMapsLabelsAndAssignee(t *testing.T) {
	li := Issue{Title: "t", Priority: 1}
	li.Labels.Nodes = []struct {
		Name string `json:"name"`
	}{{Name: "bug"}}
	li.Assignee = &struct {
		Email string `json:"email"`
	}{Email: "alice@example.com"}
	li.State.Type = "started"

	iss := ToIssue(li)
	require.Equal(t, model.StatusInProgress, iss.Status)
	require.Equal(t, []string{"bug"}, iss.Labels)
	require.Equal(t, []string{"alice@example.com"}, iss.Assignees)
}
