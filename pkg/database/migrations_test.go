package database

import (
	"io/fs"
	"testing"

	"devsocial/pkg/database/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	collected, err := Pending()
	require.NoError(t, err)
	require.Len(t, collected, 3)
	assert.Equal(t, int64(1), collected[0].Version)
	assert.Equal(t, int64(3), collected[2].Version)
}
