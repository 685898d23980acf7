package nullstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborix-db/pmtree/internal/pmerrors"
)

func TestContentOperationsAreUnimplemented(t *testing.T) {
	s := New[int]()

	_, err := s.Insert(1)
	require.ErrorIs(t, err, pmerrors.ErrNotImplemented)

	_, err = s.Read(0)
	require.ErrorIs(t, err, pmerrors.ErrNotImplemented)

	err = s.Delete(0)
	require.ErrorIs(t, err, pmerrors.ErrNotImplemented)
}

func TestRefCountOperationsAlwaysSucceed(t *testing.T) {
	s := New[int]()

	count, err := s.IncRefCount(0)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, err = s.DecRefCount(0)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestCloneReturnsIndependentNullStore(t *testing.T) {
	s := New[int]()
	clone := s.Clone()
	require.IsType(t, &Store[int]{}, clone)
}
