package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neonotify/neonotify/internal/store"
)

func backends(t *testing.T) map[string]store.Store {
	t.Helper()

	mem, err := store.Open("test", store.BackendMemDB, "")
	require.NoError(t, err)

	level, err := store.Open("test", store.BackendGoLevelDB, t.TempDir())
	require.NoError(t, err)

	peb, err := store.Open("test", store.BackendPebble, t.TempDir())
	require.NoError(t, err)

	stores := map[string]store.Store{
		store.BackendMemDB:     mem,
		store.BackendGoLevelDB: level,
		store.BackendPebble:    peb,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreGetSet(t *testing.T) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			v, err := s.Get([]byte("missing"))
			require.NoError(t, err)
			require.Nil(t, v)

			require.NoError(t, s.Set([]byte("k"), []byte("v")))
			v, err = s.Get([]byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), v)
		})
	}
}

func TestStoreBatch(t *testing.T) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			b := s.NewBatch()
			defer b.Close()

			require.NoError(t, b.Set([]byte{1, 1}, []byte("a")))
			require.NoError(t, b.Set([]byte{1, 2}, []byte("b")))

			// nothing is visible before the batch is written
			v, err := s.Get([]byte{1, 1})
			require.NoError(t, err)
			require.Nil(t, v)

			require.NoError(t, b.WriteSync())

			v, err = s.Get([]byte{1, 2})
			require.NoError(t, err)
			require.Equal(t, []byte("b"), v)
		})
	}
}

func TestIteratePrefix(t *testing.T) {
	for name, s := range backends(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			for _, k := range [][]byte{
				{0x01, 0xaa, 0x00},
				{0x02, 0xaa, 0x00, 0x00, 0x00, 0x01},
				{0x02, 0xaa, 0x00, 0x00, 0x00, 0x02},
				{0x02, 0xab, 0x00, 0x00, 0x00, 0x01},
				{0x03},
			} {
				require.NoError(t, s.Set(k, k))
			}

			var got [][]byte
			err := store.IteratePrefix(s, []byte{0x02, 0xaa}, func(key, value []byte) (bool, error) {
				require.Equal(t, key, value)
				got = append(got, append([]byte{}, key...))
				return true, nil
			})
			require.NoError(t, err)
			require.Equal(t, [][]byte{
				{0x02, 0xaa, 0x00, 0x00, 0x00, 0x01},
				{0x02, 0xaa, 0x00, 0x00, 0x00, 0x02},
			}, got)

			// early termination
			calls := 0
			err = store.IteratePrefix(s, []byte{0x02}, func(key, value []byte) (bool, error) {
				calls++
				return false, nil
			})
			require.NoError(t, err)
			require.Equal(t, 1, calls)

			// empty partition
			err = store.IteratePrefix(s, []byte{0x09}, func(key, value []byte) (bool, error) {
				t.Fatalf("unexpected key %X", key)
				return true, nil
			})
			require.NoError(t, err)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := store.Open("test", "cleveldb", t.TempDir())
	require.ErrorIs(t, err, store.ErrUnknownBackend)
}
