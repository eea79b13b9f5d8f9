package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var memoryDBSeq atomic.Int64

// memoryDSN returns a uniquely named shared in-memory database so each test
// gets its own, while still allowing more than one connection.
func memoryDSN(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("file:store_test_%d?mode=memory&cache=shared", memoryDBSeq.Add(1))
}

func setupCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := OpenCache(context.Background(), memoryDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := OpenRegistry(context.Background(), memoryDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })
	return registry
}
