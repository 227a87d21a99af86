package entrypoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/config"
)

func TestCSRFSecret(t *testing.T) {
	secret, err := csrfSecret("00ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, secret)

	secret, err = csrfSecret("not-hex")
	require.NoError(t, err)
	assert.Equal(t, []byte("not-hex"), secret)

	secret, err = csrfSecret("")
	require.NoError(t, err)
	assert.Len(t, secret, 32)
}

func TestNewServices(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Database = config.Database{Type: config.DatabaseSQLite, Path: filepath.Join(t.TempDir(), "library.db")}
	cfg.Audit.Dir = t.TempDir()

	svc, err := NewServices(cfg, nil)
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	_, err = svc.Catalog.AddBook(ctx, "", catalog.BookInput{BookNo: "B1", Title: "Dune", Quantity: 1})
	require.NoError(t, err)

	ranking, err := svc.Circulation.Ranking(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ranking)

	require.NoError(t, svc.Settings.SetSettings(map[string]string{"k": "v"}))
}
