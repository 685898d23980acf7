package memstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborix-db/pmtree/internal/pmerrors"
)

func TestInsertReadRoundTrip(t *testing.T) {
	s := New[string]()
	ptr, err := s.Insert("hello")
	require.NoError(t, err)

	got, err := s.Read(ptr)
	require.NoError(t, err)
	require.Equal(t, "hello", got)
}

func TestReadUnknownPointerWrapsNotFound(t *testing.T) {
	s := New[string]()
	_, err := s.Read(999)
	require.ErrorIs(t, err, pmerrors.ErrNotFound)
}

func TestRefCountProtocol(t *testing.T) {
	s := New[int]()
	ptr, err := s.Insert(1)
	require.NoError(t, err)

	count, err := s.IncRefCount(ptr)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	count, err = s.DecRefCount(ptr)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, err = s.DecRefCount(ptr)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	// DecRefCount saturates at zero.
	count, err = s.DecRefCount(ptr)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	require.NoError(t, s.Delete(ptr))
	_, err = s.Read(ptr)
	require.ErrorIs(t, err, pmerrors.ErrNotFound)
}

func TestCloneSharesUnderlyingStorage(t *testing.T) {
	s := New[int]()
	ptr, err := s.Insert(5)
	require.NoError(t, err)

	clone := s.Clone()
	got, err := clone.Read(ptr)
	require.NoError(t, err)
	require.Equal(t, 5, got)

	second, err := clone.Insert(6)
	require.NoError(t, err)
	got, err = s.Read(second)
	require.NoError(t, err)
	require.Equal(t, 6, got)
	require.Equal(t, 2, s.Len())
}

func TestDistinctInsertsOfEqualNodesGetDistinctPointers(t *testing.T) {
	s := New[int]()
	a, err := s.Insert(42)
	require.NoError(t, err)
	b, err := s.Insert(42)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
