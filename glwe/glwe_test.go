package glwe_test

import (
	"testing"

	"github.com/stretchr/testify/require"

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

func TestEvaluatorAddSubRoundTrip(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	one := bundle.EncryptBit(eval, 1)
	zero := bundle.EncryptBit(eval, 0)

	sum := glwe.NewCiphertext(gp, one.Degree(), one.Level())
	eval.Add(one, zero, sum)
	require.Equal(t, uint64(1), bundle.DecryptBit(sum))

	diff := glwe.NewCiphertext(gp, one.Degree(), one.Level())
	eval.Sub(one, one, diff)
	require.Equal(t, uint64(0), bundle.DecryptBit(diff))
}

func TestEvaluatorCopy(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	src := bundle.EncryptBit(eval, 1)
	dst := glwe.NewCiphertext(gp, src.Degree(), src.Level())
	eval.Copy(src, dst)
	require.Equal(t, uint64(1), bundle.DecryptBit(dst))
}

func TestEvaluatorTrivialBit(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	require.Equal(t, uint64(1), bundle.DecryptBit(eval.TrivialBit(1)))
	require.Equal(t, uint64(0), bundle.DecryptBit(eval.TrivialBit(0)))
}

func TestEvaluatorExternalProductByIdentity(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	ct := bundle.EncryptBit(eval, 1)
	identity := bundle.EncryptMonomialSelector(0) // X^0 = 1

	out := glwe.NewCiphertext(gp, ct.Degree(), ct.Level())
	eval.ExternalProduct(identity, ct, out)
	require.Equal(t, uint64(1), bundle.DecryptBit(out))
}

func TestEvaluatorNoiseBudgetPositive(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	ct := bundle.EncryptBit(eval, 1)
	require.Greater(t, bundle.NoiseBudget(ct), 0.0)
}
