package topology

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindingRegistry(t *testing.T) {
	binding := Binding{Queue: "BUS.INFO.node-1", Exchange: "BUS.INFO"}

	t.Run("records every call, duplicates included", func(t *testing.T) {
		r := NewBindingRegistry()
		r.Record(binding)
		r.Record(binding)

		assert.Equal(t, 2, r.Len())
		assert.Equal(t, []Binding{binding, binding}, r.All())
	})

	t.Run("drain empties the registry exactly once", func(t *testing.T) {
		r := NewBindingRegistry()
		r.Record(binding)

		first := r.Drain()
		second := r.Drain()

		assert.Len(t, first, 1)
		assert.Empty(t, second)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("all returns a snapshot, not the backing slice", func(t *testing.T) {
		r := NewBindingRegistry()
		r.Record(binding)

		snapshot := r.All()
		snapshot[0].Queue = "mutated"

		assert.Equal(t, "BUS.INFO.node-1", r.All()[0].Queue)
	})

	t.Run("concurrent records are all retained", func(t *testing.T) {
		r := NewBindingRegistry()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.Record(binding)
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, r.Len())
	})
}
