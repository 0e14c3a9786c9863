package keys_test

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

func TestEncryptDecryptBitRoundTrip(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	require.Equal(t, uint64(0), bundle.DecryptBit(bundle.EncryptBit(eval, 0)))
	require.Equal(t, uint64(1), bundle.DecryptBit(bundle.EncryptBit(eval, 1)))
}

func TestEncryptDecryptWordRoundTrip(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	want := uint32(0xA5A5A5A5)
	bits := bundle.EncryptWord(eval, want, 32)
	require.Equal(t, want, bundle.DecryptWord(bits))
}

func TestCircuitBootstrapIsScalarSelector(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	lo := bundle.EncryptBit(eval, 0)
	hi := bundle.EncryptBit(eval, 1)

	diff := glwe.NewCiphertext(gp, hi.Degree(), hi.Level())
	eval.Sub(hi, lo, diff)

	zeroSel := bundle.CircuitBootstrap(eval, bundle.EncryptBit(eval, 0))
	prodZero := glwe.NewCiphertext(gp, diff.Degree(), diff.Level())
	eval.ExternalProduct(zeroSel, diff, prodZero)
	require.Equal(t, uint64(0), bundle.DecryptBit(prodZero))

	oneSel := bundle.CircuitBootstrap(eval, bundle.EncryptBit(eval, 1))
	prodOne := glwe.NewCiphertext(gp, diff.Degree(), diff.Level())
	eval.ExternalProduct(oneSel, diff, prodOne)
	require.Equal(t, uint64(1), bundle.DecryptBit(prodOne))
}

func TestInvertSelectorRoundTrip(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	sel := bundle.EncryptMonomialSelector(3)
	inv := bundle.InvertSelector(eval, sel)

	bit := bundle.EncryptBit(eval, 1)
	rotated := glwe.NewCiphertext(gp, bit.Degree(), bit.Level())
	eval.ExternalProduct(sel, bit, rotated)

	back := glwe.NewCiphertext(gp, bit.Degree(), bit.Level())
	eval.ExternalProduct(inv, rotated, back)
	require.Equal(t, uint64(1), bundle.DecryptBit(back))
}

func TestNoiseBudgetPositive(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	ct := bundle.EncryptBit(eval, 1)
	require.Greater(t, bundle.NoiseBudget(ct), 0.0)
}
