package taskqueue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunner_ProcessesAllTasks(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]int)

	q := NewRunner(func(_ context.Context, documentID string, content []byte) error {
		mu.Lock()
		defer mu.Unlock()
		seen[documentID] = len(content)
		return nil
	})

	q.Submit("a", []byte("one"))
	q.Submit("b", []byte("four"))
	q.Wait()

	assert.Equal(t, map[string]int{"a": 3, "b": 4}, seen)
}

func TestSynchronous_RunsInline(t *testing.T) {
	var order []string

	q := NewSynchronous(func(_ context.Context, documentID string, _ []byte) error {
		order = append(order, documentID)
		return nil
	})

	q.Submit("first", nil)
	order = append(order, "after-first")
	q.Submit("second", nil)
	q.Wait()

	assert.Equal(t, []string{"first", "after-first", "second"}, order)
}
