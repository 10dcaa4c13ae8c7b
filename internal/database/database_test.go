package database

import (
	"path/filepath"
	"testing"

	"github.com/OCAP2/tacmap/internal/config"
	"github.com/OCAP2/tacmap/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tacmap.db")
	m := NewManager(config.StorageConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: path},
	}, zerolog.Nop())

	require.NoError(t, m.Connect())
	t.Cleanup(func() { _ = m.Close() })

	assert.True(t, m.IsValid)
	assert.True(t, m.IsLocal)

	require.NoError(t, m.Setup())
	for _, tbl := range model.DatabaseModels {
		assert.True(t, m.DB.Migrator().HasTable(tbl), "%T", tbl)
	}
}

func TestConnect_UnknownType(t *testing.T) {
	m := NewManager(config.StorageConfig{Type: "mongo"}, zerolog.Nop())
	err := m.Connect()
	require.Error(t, err)
	assert.False(t, m.IsValid)
}

func TestSetup_NotConnected(t *testing.T) {
	m := NewManager(config.StorageConfig{Type: "sqlite"}, zerolog.Nop())
	require.Error(t, m.Setup())
}

func TestClose_NotConnected(t *testing.T) {
	m := NewManager(config.StorageConfig{}, zerolog.Nop())
	assert.NoError(t, m.Close())
}
