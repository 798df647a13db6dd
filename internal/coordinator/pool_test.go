package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/coordinator/internal/model"
)

func TestPoolAttachBuildsOnceAndReusesCoordinator(t *testing.T) {
	var builds int
	pool := NewPool(func(repo model.RepoContext) (*Coordinator, error) {
		builds++
		c, _ := newTestCoordinator(t)
		return c, nil
	}, nil)

	repo := model.RepoContext{Owner: "acme", Name: "widgets"}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c1, err := pool.Attach(ctx, repo)
	require.NoError(t, err)
	require.Equal(t, StateActive, c1.State())

	c2, err := pool.Attach(ctx, repo)
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.Equal(t, 1, builds)

	pool.CloseAll()
	require.Equal(t, StateClosed, c1.State())
}

func TestPoolGetReportsAbsence(t *testing.T) {
	pool := NewPool(func(repo model.RepoContext) (*Coordinator, error) {
		c, _ := newTestCoordinator(t)
		return c, nil
	}, nil)

	_, ok := pool.Get(model.RepoContext{Owner: "acme", Name: "widgets"})
	require.False(t, ok)
}
