package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/store"
)

func TestSeed_CreatesItems(t *testing.T) {
	db := filepath.Join(t.TempDir(), "seed.db")

	out, _, err := execute(t, "seed", "--db", db, "--list", "inbox", "--count", "3")
	require.NoError(t, err)
	assert.Equal(t, "Created 3 items in inbox (ids 1-3)\n", out)

	out, _, err = execute(t, "seed", "--db", db, "--list", "archive", "--count", "2", "--title", "old", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   SeedResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, SeedResult{ListID: "archive", Created: 2, FirstID: 4, LastID: 5}, resp.Data)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	n, err := st.FetchCount(ctx, item.Query{ListID: "inbox"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := st.FetchNumbered(ctx, item.Query{ListID: "archive", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "old 1", page.Items[0].Fields["title"])
}

func TestSeed_InvalidFlags(t *testing.T) {
	db := filepath.Join(t.TempDir(), "seed.db")

	_, _, err := execute(t, "seed", "--db", db, "--count", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "seed", "--db", db, "--list", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list is required")
}
