package blindselect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropic-labs/fhevm/blindselect"
	"github.com/entropic-labs/fhevm/glwe"
	"github.com/entropic-labs/fhevm/keys"
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

// bootstrappedBit returns the plain 0/1 GGSW selector for value, the form
// blindselect.Cmux and bdd's branch evaluation expect.
func bootstrappedBit(bundle *keys.Bundle, eval *glwe.Evaluator, value uint64) *glwe.Selector {
	return bundle.CircuitBootstrap(eval, bundle.EncryptBit(eval, value))
}

func TestCmuxSelectsLoOrHi(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	lo := bundle.EncryptBit(eval, 0)
	hi := bundle.EncryptBit(eval, 1)

	out0 := glwe.NewCiphertext(gp, lo.Degree(), lo.Level())
	blindselect.Cmux(eval, bootstrappedBit(bundle, eval, 0), lo, hi, out0)
	require.Equal(t, uint64(0), bundle.DecryptBit(out0))

	out1 := glwe.NewCiphertext(gp, lo.Degree(), lo.Level())
	blindselect.Cmux(eval, bootstrappedBit(bundle, eval, 1), lo, hi, out1)
	require.Equal(t, uint64(1), bundle.DecryptBit(out1))
}

func TestCmuxInplace(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	lo := bundle.EncryptBit(eval, 0)
	hi := bundle.EncryptBit(eval, 1)

	blindselect.CmuxInplace(eval, bootstrappedBit(bundle, eval, 1), lo, hi)
	require.Equal(t, uint64(1), bundle.DecryptBit(lo))
}

func TestTreeSelectSingleLeaf(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	leaf := bundle.EncryptBit(eval, 1)
	out := blindselect.TreeSelect(eval, nil, []*glwe.Ciphertext{leaf})
	require.Equal(t, uint64(1), bundle.DecryptBit(out))
}

func TestTreeSelectFourLeaves(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	leaves := make([]*glwe.Ciphertext, 4)
	for i := range leaves {
		leaves[i] = bundle.EncryptBit(eval, uint64(i&1))
	}

	// MSB-first bits selecting index 2 (0b10): leaves[2] == 0.
	bits := []*glwe.Selector{
		bootstrappedBit(bundle, eval, 1),
		bootstrappedBit(bundle, eval, 0),
	}
	out := blindselect.TreeSelect(eval, bits, leaves)
	require.Equal(t, uint64(0), bundle.DecryptBit(out))

	// index 3 (0b11): leaves[3] == 1.
	bits = []*glwe.Selector{
		bootstrappedBit(bundle, eval, 1),
		bootstrappedBit(bundle, eval, 1),
	}
	out = blindselect.TreeSelect(eval, bits, leaves)
	require.Equal(t, uint64(1), bundle.DecryptBit(out))
}

func TestTreeSelectPanicsOnMismatchedLeafCount(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	leaves := []*glwe.Ciphertext{bundle.EncryptBit(eval, 0), bundle.EncryptBit(eval, 1)}
	require.Panics(t, func() {
		blindselect.TreeSelect(eval, []*glwe.Selector{bootstrappedBit(bundle, eval, 0)}, leaves[:1])
	})
}
