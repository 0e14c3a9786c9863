package fheuint_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropic-labs/fhevm/fheuint"
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

func encryptWord(bundle *keys.Bundle, eval *glwe.Evaluator, value uint32, width int) *fheuint.FheUint {
	f := fheuint.New(eval, width)
	for i := 0; i < width; i++ {
		f.SetBit(i, bundle.EncryptBit(eval, uint64((value>>uint(i))&1)))
	}
	return f
}

func decryptWord(bundle *keys.Bundle, f *fheuint.FheUint) uint32 {
	var v uint32
	for i := 0; i < f.Width(); i++ {
		if bundle.DecryptBit(f.GetBit(i)) != 0 {
			v |= 1 << uint(i)
		}
	}
	return v
}

func TestFheUintGetSetBit(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	f := encryptWord(bundle, eval, 0b1010, 4)
	require.Equal(t, uint32(0b1010), decryptWord(bundle, f))
}

func TestFheUintZeroExtend(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	f := encryptWord(bundle, eval, 0b1011, 4)
	wide := f.ZeroExtend(eval, 8)
	require.Equal(t, uint32(0b00001011), decryptWord(bundle, wide))
}

func TestFheUintSignExtendNegative(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	f := encryptWord(bundle, eval, 0b1000, 4) // top bit set: negative in 4-bit two's complement
	wide := f.SignExtend(eval, 8)
	require.Equal(t, uint32(0b11111000), decryptWord(bundle, wide))
}

func TestFheUintSignExtendPositive(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	f := encryptWord(bundle, eval, 0b0110, 4)
	wide := f.SignExtend(eval, 8)
	require.Equal(t, uint32(0b00000110), decryptWord(bundle, wide))
}

func TestPrepareAddressToAddressRoundTrip(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	f := encryptWord(bundle, eval, 5, 3) // 0b101
	prepared := f.PrepareAddress(eval, bundle)
	addr := prepared.ToAddress(false)

	bit := bundle.EncryptBit(eval, 1)
	out := glwe.NewCiphertext(gp, bit.Degree(), bit.Level())
	tmp := glwe.NewCiphertext(gp, bit.Degree(), bit.Level())
	addr.BlindRotate(eval, bit, out, tmp)
	// rotated by 5 != 0, so the constant coefficient no longer carries bit.
	require.Equal(t, uint64(0), bundle.DecryptBit(out))

	inv := addr.Inverted(eval, bundle)
	back := glwe.NewCiphertext(gp, bit.Degree(), bit.Level())
	inv.BlindRotate(eval, out, back, tmp)
	require.Equal(t, uint64(1), bundle.DecryptBit(back))
}

func TestGetBitGLWEIsIndependentCopy(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	f := encryptWord(bundle, eval, 1, 2)
	extracted := f.GetBitGLWE(eval, 0)
	require.Equal(t, uint64(1), bundle.DecryptBit(extracted))

	// mutating the extracted copy must not affect the original.
	eval.Sub(extracted, extracted, extracted)
	require.Equal(t, uint64(1), bundle.DecryptBit(f.GetBit(0)))
}
