package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/project-health/internal/errors"
	"github.com/p-blackswan/project-health/internal/models"
)

var base = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func snap(i int) models.Snapshot {
	return models.Snapshot{Timestamp: base.Add(time.Duration(i) * time.Hour), CompletedTasks: i}
}

func TestStore_AppendEvictsOldest(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultLimit, s.Limit())

	for i := 0; i < 35; i++ {
		require.NoError(t, s.Append("p", snap(i)))
	}
	got := s.Get("p")
	require.Len(t, got, DefaultLimit)
	assert.Equal(t, 5, got[0].CompletedTasks)
	assert.Equal(t, 34, got[len(got)-1].CompletedTasks)
}

func TestStore_RejectsNonMonotonic(t *testing.T) {
	s := New(5)
	require.NoError(t, s.Append("p", snap(2)))
	err := s.Append("p", snap(2))
	assert.ErrorIs(t, err, perrors.ErrNonMonotonic)
	err = s.Append("p", snap(1))
	assert.ErrorIs(t, err, perrors.ErrNonMonotonic)
	assert.Equal(t, 1, s.Len("p"))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New(5)
	require.NoError(t, s.Append("p", snap(1)))
	got := s.Get("p")
	got[0].CompletedTasks = 99
	assert.Equal(t, 1, s.Get("p")[0].CompletedTasks)
	assert.Nil(t, s.Get("missing"))
	assert.Equal(t, 0, s.Len("missing"))
}

func TestStore_Load(t *testing.T) {
	s := New(3)
	s.Load("p", []models.Snapshot{snap(4), snap(1), snap(3), snap(3), snap(2)})
	got := s.Get("p")
	require.Len(t, got, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{got[0].CompletedTasks, got[1].CompletedTasks, got[2].CompletedTasks})
	assert.Equal(t, []string{"p"}, s.Projects())

	s.Remove("p")
	assert.Empty(t, s.Projects())
}

func TestStore_ConcurrentAppendsAcrossProjects(t *testing.T) {
	s := New(10)
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			name := fmt.Sprintf("p%d", p)
			for i := 0; i < 20; i++ {
				_ = s.Append(name, snap(i))
			}
		}(p)
	}
	wg.Wait()
	for p := 0; p < 8; p++ {
		assert.Equal(t, 10, s.Len(fmt.Sprintf("p%d", p)))
	}
}
