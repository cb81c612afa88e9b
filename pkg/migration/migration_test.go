package migration

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_comments.up.sql":   {Data: []byte("CREATE TABLE comments (id BIGSERIAL PRIMARY KEY);")},
		"0002_comments.down.sql": {Data: []byte("DROP TABLE comments;")},
		"0001_init.up.sql":       {Data: []byte("CREATE TABLE users (id BIGSERIAL PRIMARY KEY);")},
		"0001_init.down.sql":     {Data: []byte("DROP TABLE users;")},
		"README.md":              {Data: []byte("not a migration")},
	}

	migrations, err := Load(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, "0001", migrations[0].Version)
	assert.Equal(t, "init", migrations[0].Name)
	assert.Contains(t, migrations[0].UpSQL, "CREATE TABLE users")
	assert.Contains(t, migrations[0].DownSQL, "DROP TABLE users")
	assert.Equal(t, "0002", migrations[1].Version)
	assert.Equal(t, "comments", migrations[1].Name)
}

func TestLoad_MissingDirection(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_init.up.sql": {Data: []byte("CREATE TABLE users (id INT);")},
	}

	_, err := Load(fsys)
	assert.Error(t, err)
}

func TestLoad_ConflictingNames(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_init.up.sql":    {Data: []byte("SELECT 1;")},
		"0001_other.down.sql": {Data: []byte("SELECT 1;")},
	}

	_, err := Load(fsys)
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "0001_init.up.sql", FileName("0001", "init", "up"))
	assert.Equal(t, "0001_init.down.sql", FileName("0001", "init", "down"))
}

func TestSplitSQL(t *testing.T) {
	script := `
-- users
CREATE TABLE users (id BIGSERIAL PRIMARY KEY);

-- orders
CREATE TABLE orders (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id)
);
CREATE INDEX idx_orders_user_id ON orders (user_id);
`
	statements := splitSQL(script)
	require.Len(t, statements, 3)
	assert.Equal(t, "CREATE TABLE users (id BIGSERIAL PRIMARY KEY)", statements[0])
	assert.Contains(t, statements[1], "user_id BIGINT NOT NULL REFERENCES users(id)")
	assert.Equal(t, "CREATE INDEX idx_orders_user_id ON orders (user_id)", statements[2])

	assert.Empty(t, splitSQL("-- nothing here\n"))
}
