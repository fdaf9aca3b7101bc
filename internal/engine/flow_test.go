package engine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_TokensAreV7(t *testing.T) {
	token := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_TokensSortByCreation(t *testing.T) {
	gen := UUIDv7Generator{}
	prev := gen.Generate()
	for i := 0; i < 50; i++ {
		next := gen.Generate()
		assert.Less(t, prev, next, "cycle tokens must sort in creation order")
		prev = next
	}
}

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator("")
	assert.Equal(t, "cycle-1", gen.Generate())
	assert.Equal(t, "cycle-2", gen.Generate())

	named := NewSequenceGenerator("reload")
	assert.Equal(t, "reload-1", named.Generate())
}

func TestSequenceGenerator_ConcurrentCallersGetDistinctTokens(t *testing.T) {
	gen := NewSequenceGenerator("cycle")
	const callers = 20

	var mu sync.Mutex
	var wg sync.WaitGroup
	seen := make(map[string]bool)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := gen.Generate()
			mu.Lock()
			seen[token] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, callers)
	assert.True(t, seen["cycle-20"])
}
