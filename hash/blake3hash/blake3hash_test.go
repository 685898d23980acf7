package blake3hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeIsDeterministic(t *testing.T) {
	a := New()
	a.Write([]byte("hello"))
	b := New()
	b.Write([]byte("hello"))
	require.Equal(t, a.Finalize(), b.Finalize())
}

func TestForkIsIndependentOfParentState(t *testing.T) {
	parent := New()
	parent.Write([]byte("parent state"))
	fork := parent.Fork()
	fork.Write([]byte("hello"))

	fresh := New()
	fresh.Write([]byte("hello"))
	require.Equal(t, fresh.Finalize(), fork.Finalize())
}

func TestEmptyHashMatchesFinalizeOfUnwrittenHasher(t *testing.T) {
	require.Equal(t, New().Finalize(), EmptyHash)
}

func TestDigestLengthMatchesSize(t *testing.T) {
	h := New()
	h.Write([]byte("x"))
	require.Len(t, h.Finalize(), Size)
}
