package database

import (
	"context"
	"database/sql/driver"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxarchive/zxmirror/pkg/config"
)

func TestNew_AppliesPragmas(t *testing.T) {
	cfg := config.NewForTest()
	cfg.DatabaseFilePath = filepath.Join(t.TempDir(), "zxmirror.db")

	db, err := New(cfg)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

type plainDriver struct {
	opened []string
}

func (d *plainDriver) Open(name string) (driver.Conn, error) {
	d.opened = append(d.opened, name)
	return nil, driver.ErrBadConn
}

func TestOpenConnector_PlainDriver(t *testing.T) {
	drv := &plainDriver{}

	connector, err := openConnector(drv, "/data/zxmirror.db")
	require.NoError(t, err)
	assert.Same(t, drv, connector.Driver())

	_, err = connector.Connect(context.Background())
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, []string{"/data/zxmirror.db"}, drv.opened)
}

func TestNew_ReopensExistingFile(t *testing.T) {
	cfg := config.NewForTest()
	cfg.DatabaseFilePath = filepath.Join(t.TempDir(), "zxmirror.db")

	db, err := New(cfg)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE markers (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(cfg)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'markers'").Scan(&count))
	assert.Equal(t, 1, count)
}
