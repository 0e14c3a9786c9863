package coordinate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropic-labs/fhevm/coordinate"
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

func TestScheduleWeightValues(t *testing.T) {
	s := coordinate.Schedule{{Bits: 2}, {Bits: 3}}
	require.Equal(t, 1, s.Weight(0))
	require.Equal(t, 4, s.Weight(1)) // digit 0 has Max() = 4
	require.Equal(t, 32, s.Max())    // 4 * 8
}

func TestBlindRotateAndInvert(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	schedule := coordinate.Schedule{{Bits: 3}}
	addr := coordinate.NewEncryptedAddress(eval, bundle, 2, schedule, false)

	bit := bundle.EncryptBit(eval, 1)
	out := glwe.NewCiphertext(gp, bit.Degree(), bit.Level())
	tmp := glwe.NewCiphertext(gp, bit.Degree(), bit.Level())
	addr.BlindRotate(eval, bit, out, tmp)

	// the bit's constant coefficient moved to coefficient 2, so decoding the
	// constant coefficient directly no longer observes it.
	require.Equal(t, uint64(0), bundle.DecryptBit(out))

	inv := addr.Inverted(eval, bundle)
	back := glwe.NewCiphertext(gp, bit.Degree(), bit.Level())
	inv.BlindRotate(eval, out, back, tmp)
	require.Equal(t, uint64(1), bundle.DecryptBit(back))
}

func TestAddressDepthAndMax(t *testing.T) {
	gp := testParams(t)
	bundle, eval := keys.Generate(gp, rlwe.DigitDecomposition{})

	schedule := coordinate.Schedule{{Bits: 2}, {Bits: 2}}
	addr := coordinate.NewEncryptedAddress(eval, bundle, 5, schedule, false)
	require.Equal(t, 2, addr.Depth())
	require.Equal(t, 16, addr.Max())
}
