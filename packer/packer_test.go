package packer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropic-labs/fhevm/glwe"
	"github.com/entropic-labs/fhevm/keys"
	"github.com/entropic-labs/fhevm/packer"
	"github.com/entropic-labs/fhevm/rlwe"
)

func testParams(t *testing.T) glwe.Params {
	t.Helper()
	params, err := rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    10,
		LogQ:    []int{45, 35, 35},
		LogP:    []int{50, 50},
		NTTFlag: true,
	})
	require.NoError(t, err)
	return glwe.Params{Parameters: params, Rank: 1, Base2K: 18}
}

// decodeCoeff rotates coefficient i of a packed ciphertext into the
// constant position (X^{-i}) and decodes it, since keys.Bundle.DecryptBit
// only ever reads the constant coefficient.
func decodeCoeff(bundle *keys.Bundle, eval *glwe.Evaluator, gp glwe.Params, ct *glwe.Ciphertext, i int) uint64 {
	if i == 0 {
		return bundle.DecryptBit(ct)
	}
	sel := bundle.EncryptMonomialSelector(-i)
	out := glwe.NewCiphertext(gp, ct.Degree(), ct.Level())
	eval.ExternalProduct(sel, ct, out)
	return bundle.DecryptBit(out)
}

func TestPackerFlushTwoSlots(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	p := packer.New(eval, 1) // N = 2
	p.Add(bundle.EncryptBit(eval, 1))
	p.Add(nil)

	scratch := [2]*glwe.Ciphertext{
		glwe.NewCiphertext(gp, 1, gp.MaxLevelQ()),
		glwe.NewCiphertext(gp, 1, gp.MaxLevelQ()),
	}
	packed := p.Flush(scratch)

	require.Equal(t, uint64(1), decodeCoeff(bundle, eval, gp, packed, 0))
	require.Equal(t, uint64(0), decodeCoeff(bundle, eval, gp, packed, 1))
}

func TestPackerFlushSecondSlot(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	p := packer.New(eval, 1) // N = 2
	p.Add(nil)
	p.Add(bundle.EncryptBit(eval, 1))

	scratch := [2]*glwe.Ciphertext{
		glwe.NewCiphertext(gp, 1, gp.MaxLevelQ()),
		glwe.NewCiphertext(gp, 1, gp.MaxLevelQ()),
	}
	packed := p.Flush(scratch)

	require.Equal(t, uint64(0), decodeCoeff(bundle, eval, gp, packed, 0))
	require.Equal(t, uint64(1), decodeCoeff(bundle, eval, gp, packed, 1))
}

func TestPackerAddPanicsWhenFull(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	p := packer.New(eval, 1)
	p.Add(bundle.EncryptBit(eval, 0))
	p.Add(bundle.EncryptBit(eval, 0))
	require.Panics(t, func() { p.Add(bundle.EncryptBit(eval, 0)) })
}
