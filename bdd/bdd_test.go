package bdd_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropic-labs/fhevm/bdd"
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

func TestCircuitEvalEncGates(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	c := bdd.New(2,
		bdd.And2(0, 1),
		bdd.Or2(0, 1),
		bdd.Xor(bdd.Branch(0, bdd.Leaf(0), bdd.Leaf(1)), bdd.Branch(1, bdd.Leaf(0), bdd.Leaf(1))),
		bdd.Not(bdd.Branch(0, bdd.Leaf(0), bdd.Leaf(1))),
	)

	for a := uint64(0); a < 2; a++ {
		for b := uint64(0); b < 2; b++ {
			selA := bundle.CircuitBootstrap(eval, bundle.EncryptBit(eval, a))
			selB := bundle.CircuitBootstrap(eval, bundle.EncryptBit(eval, b))

			out := c.EvalEnc(eval, []*glwe.Selector{selA, selB})
			require.Len(t, out, 4)

			require.Equal(t, a&b, bundle.DecryptBit(out[0]), "AND(%d,%d)", a, b)
			require.Equal(t, a|b, bundle.DecryptBit(out[1]), "OR(%d,%d)", a, b)
			require.Equal(t, a^b, bundle.DecryptBit(out[2]), "XOR(%d,%d)", a, b)
			require.Equal(t, a^1, bundle.DecryptBit(out[3]), "NOT(%d)", a)
		}
	}
}

func TestCircuitEvalEncPanicsOnTooFewInputs(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	c := bdd.New(2, bdd.And2(0, 1))
	sel := bundle.CircuitBootstrap(eval, bundle.EncryptBit(eval, 0))

	require.Panics(t, func() {
		c.EvalEnc(eval, []*glwe.Selector{sel})
	})
}
