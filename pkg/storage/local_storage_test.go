package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key, err := store.Save(ctx, []byte("model,qty\nES-02,3\n"), SaveOptions{Category: "shipping_documents", Extension: "csv"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "shipping_documents/"))
	assert.True(t, strings.HasSuffix(key, ".csv"))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "model,qty\nES-02,3\n", string(data))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// 重复删除不报错
	assert.NoError(t, store.Delete(ctx, key))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, store.Delete(context.Background(), "/abs/path"))
}

func TestLocalStorageRejectsEmptyPayload(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), nil, SaveOptions{})
	assert.Error(t, err)
}

func TestBuildObjectPathSanitizes(t *testing.T) {
	key := buildObjectPath("Shipping Docs!", "My File", ".XLSX")
	assert.True(t, strings.HasPrefix(key, "shippingdocs/"))
	assert.True(t, strings.HasSuffix(key, "/my-file.xlsx"))
}
