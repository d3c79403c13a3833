// internal/browser/context_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	t.Run("cancels when the primary context is canceled", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		secondary := context.Background()

		combined, cancel := CombineContext(primary, secondary)
		defer cancel()

		cancelPrimary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe primary cancellation")
		}
	})

	t.Run("cancels when the secondary context is canceled", func(t *testing.T) {
		primary := context.Background()
		secondary, cancelSecondary := context.WithCancel(context.Background())

		combined, cancel := CombineContext(primary, secondary)
		defer cancel()

		cancelSecondary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe secondary cancellation")
		}
	})

	t.Run("inherits values from the primary context", func(t *testing.T) {
		type key struct{}
		primary := context.WithValue(context.Background(), key{}, "target-info")

		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		assert.Equal(t, "target-info", combined.Value(key{}))
	})
}

func TestDetach(t *testing.T) {
	type key struct{}
	parent, cancelParent := context.WithCancel(context.Background())
	parent = context.WithValue(parent, key{}, "kept")

	detached := Detach(parent)
	cancelParent()

	assert.NoError(t, detached.Err(), "detached context must ignore parent cancellation")
	assert.Nil(t, detached.Done())
	assert.Equal(t, "kept", detached.Value(key{}), "detached context must keep parent values")

	_, ok := detached.Deadline()
	require.False(t, ok, "detached context must not carry a deadline")
}
