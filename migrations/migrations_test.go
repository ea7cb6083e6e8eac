package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddedMigrations(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	assert.NoError(t, err)
	assert.NotEmpty(t, ups)

	t.Run("every up migration has a down", func(t *testing.T) {
		for _, up := range ups {
			down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
			_, err := fs.Stat(FS, down)
			assert.NoError(t, err, "missing down migration for %s", up)
		}
	})

	t.Run("schema tables are present", func(t *testing.T) {
		all := make([]string, 0, len(ups))
		for _, up := range ups {
			data, err := fs.ReadFile(FS, up)
			assert.NoError(t, err)
			all = append(all, string(data))
		}
		joined := strings.Join(all, "\n")
		for _, table := range []string{"users", "verification_codes", "used_operation_tokens"} {
			assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table)
		}
	})
}
