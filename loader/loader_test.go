package loader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImageWriteInputOverflow(t *testing.T) {
	img := &Image{
		RamBase:   0x1000,
		Ram:       make([]byte, 64),
		InputAddr: 0x1000,
		InputSize: 8,
	}

	require.NoError(t, img.WriteInput([]byte{1, 2, 3, 4}))
	require.ErrorIs(t, img.WriteInput(make([]byte, 9)), ErrInputTapeOverflow)
}

func TestImageReadOutput(t *testing.T) {
	img := &Image{
		RamBase:    0x1000,
		Ram:        make([]byte, 64),
		OutputAddr: 0x1020,
		OutputSize: 4,
	}
	copy(img.Ram[0x20:], []byte{0xDE, 0xAD, 0xBE, 0xEF})

	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, img.ReadOutput())
}

func TestImageRamWords(t *testing.T) {
	img := &Image{Ram: []byte{0x01, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF}}
	words := img.RamWords()
	require.Equal(t, []uint32{1, 0xFFFFFFFF}, words)
}
