package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New[int]()
	r.Register("phone", 1)
	r.Register("name", 2)

	v, ok := r.Lookup("phone")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = r.Lookup("date")
	assert.False(t, ok)

	assert.Equal(t, []string{"name", "phone"}, r.Names())
}

func TestMustLookupPanics(t *testing.T) {
	r := New[string]()
	assert.Panics(t, func() {
		r.MustLookup("missing")
	})
}

func TestRemove(t *testing.T) {
	r := New[string]()
	r.Register("a", "x")
	r.Remove("a")
	r.Remove("never-there")
	_, ok := r.Lookup("a")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	r := New[int]()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register("key", i)
			r.Lookup("key")
			r.Names()
		}()
	}
	wg.Wait()
	_, ok := r.Lookup("key")
	assert.True(t, ok)
}
