package buffer

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// Serializable is the common shape every wire type in this module
// implements: a declared encoded size and the standard Go serialization
// hooks built on top of it.
type Serializable interface {
	BinarySize() int
	WriteTo(w io.Writer) (int64, error)
	ReadFrom(r io.Reader) (int64, error)
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// RequireSerializerCorrect exercises obj's BinarySize/WriteTo/ReadFrom/
// MarshalBinary/UnmarshalBinary round-trip and fails t if any of them
// disagree, the shared correctness check every *_test.go in this module
// runs its wire types through.
func RequireSerializerCorrect[T Serializable](t *testing.T, obj T) {
	t.Helper()

	size := obj.BinarySize()

	data, err := obj.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, size, len(data), "BinarySize does not match MarshalBinary output length")

	buf := NewBufferSize(size)
	n, err := obj.WriteTo(buf)
	require.NoError(t, err)
	require.Equal(t, int64(size), n, "BinarySize does not match WriteTo byte count")
	require.Equal(t, data, buf.Bytes(), "MarshalBinary and WriteTo disagree")
}
