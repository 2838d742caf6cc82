package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(FS, ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitMigrationGuardsActiveSlots(t *testing.T) {
	data, err := fs.ReadFile(FS, "000001_init.up.sql")
	require.NoError(t, err)

	sql := string(data)
	assert.Contains(t, sql, "appointments_active_slot_idx")
	assert.Contains(t, sql, "WHERE status IN ('pending', 'confirmed')")
}

func TestOutboxClaimMigration(t *testing.T) {
	data, err := fs.ReadFile(FS, "000003_outbox_claim.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "locked_until")
}
