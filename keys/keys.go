// Package keys implements the evaluation-key bundle (spec 4.10, component
// C11): the single trusted holder of the GLWE secret key, responsible for
// every operation that legitimately needs it at key-generation time —
// sampling sk, and deriving the automorphism keys, the tensor
// (relinearization) key and the blind-rotation key from it. Everything
// downstream of Bundle (packer, coordinate, ram, fheuint, bdd, opcode) only
// ever sees the public glwe.Evaluator and the narrow Encryptor/Inverter/
// Bootstrapper/AutomorphismHelper interfaces those packages declare. Once
// Generate returns, InvertSelector is keyed only by evk; CircuitBootstrap
// reads sk only through the secret-key encryptor that supplies the fresh
// encryption of zero in promoteToSelector.
//
// Grounded on keys.rs's RAMKeys: a HashMap of per-Galois-element
// automorphism keys driving Trace (spec 4.1's tower), an automorphism-by
// -1 key and a GGLWE-to-GGSW tensor key driving GGSW inversion
// (atk_ggsw_inv / gglwe_to_ggsw_key), plus an LWE-to-GGSW blind-rotation
// key driving circuit bootstrap, all generated once by RAMKeys::encrypt_sk.
package keys

import (
	"fmt"
	"math/big"

	"github.com/ALTree/bigfloat"

	"github.com/entropic-labs/fhevm/blindselect"
	"github.com/entropic-labs/fhevm/glwe"
	"github.com/entropic-labs/fhevm/rgsw"
	"github.com/entropic-labs/fhevm/ring"
	"github.com/entropic-labs/fhevm/rlwe"
)

var ln2 = bigfloat.Log(new(big.Float).SetPrec(200).SetInt64(2))

// Bundle owns the GLWE secret key and every automorphism key derived from
// it. It implements coordinate.Encryptor, coordinate.Inverter,
// ram.AutomorphismHelper and fheuint.Bootstrapper.
type Bundle struct {
	params glwe.Params
	sk     *rlwe.SecretKey
	evk    rlwe.EvaluationKeySet
	ggsw   *rgsw.Encryptor
	glwe   *rlwe.Encryptor
	dd     rlwe.DigitDecomposition

	// brkPos[i]/brkNeg[i] are the blind-rotation key for sk's i-th
	// ring coefficient: brkPos[i] encrypts 1 iff that coefficient is +1,
	// brkNeg[i] encrypts 1 iff it is -1 (sk is sampled ternary, spec
	// 3.1). CircuitBootstrap and CircuitBootstrapWeighted consult these
	// instead of sk itself, the LWE-to-GGSW blind-rotation key spec
	// 4.10 names blind_rotation_key.
	brkPos, brkNeg []*glwe.Selector
}

// TraceGaloisElements returns the Galois elements package packer's folding
// tower and glwe.Evaluator.Trace both need: g_i = 2^i+1 for every ring
// dimension doubling step, plus the order-2 element (Galois^-1) the final
// halving and GGSW-inversion step use. One automorphism key per element
// here covers both Pack and Trace, since both are the same tower run in
// opposite directions (spec 4.1/4.2).
func TraceGaloisElements(params glwe.Params) []uint64 {
	logN := params.LogN()
	els := make([]uint64, 0, logN+1)
	for i := 0; i < logN; i++ {
		els = append(els, params.GaloisElement(1<<i+1))
	}
	els = append(els, params.GaloisElementOrderTwoOrthogonalSubgroup())
	return els
}

// Generate samples a fresh secret key and every evaluation key this
// module's RAM/Pack/Trace/inversion/bootstrap machinery needs, and returns
// the Bundle plus the glwe.Evaluator bound to it. dd is the GGSW
// digit-decomposition (the zero value selects plain RNS decomposition,
// adequate for the noise budgets spec 3.1 assumes at the default ring
// size).
//
// Four key shapes come out of this, matching RAMKeys::encrypt_sk (spec
// 4.10): the Galois keys (atk tower, for Trace/Pack), the order-2 Galois
// key within that tower doubling as atk_ggsw_inv (InvertSelector's
// automorphism), a RelinearizationKey acting as gglwe_to_ggsw_key (the
// tensor key rgsw.Ciphertext.FromGadgetCiphertext needs to rebuild a
// GGSW's second row), and the blind-rotation key brkPos/brkNeg
// (blind_rotation_key, CircuitBootstrap's LWE-to-GGSW key).
func Generate(params glwe.Params, dd rlwe.DigitDecomposition) (*Bundle, *glwe.Evaluator) {
	kgen := rlwe.NewKeyGenerator(params.Parameters)
	sk := kgen.GenSecretKeyNew()

	galEls := TraceGaloisElements(params)
	gks := kgen.GenGaloisKeysNew(galEls, sk)
	rlk := kgen.GenRelinearizationKeyNew(sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk, gks...)

	b := &Bundle{
		params: params,
		sk:     sk,
		evk:    evk,
		ggsw:   rgsw.NewEncryptor(params.Parameters, sk),
		glwe:   rlwe.NewEncryptor(params.Parameters, sk),
		dd:     dd,
	}
	b.brkPos, b.brkNeg = b.genBlindRotationKey()
	return b, glwe.NewEvaluator(params, evk)
}

// genBlindRotationKey reads sk's own ring coefficients once, at key
// generation time — the same trust level Galois/relinearization key
// generation already uses sk at — and encrypts each coefficient's sign as
// a scalar GGSW bit. Blind rotation itself consults these keys, not sk; the
// encrypt, decrypt and noise methods of Bundle still use sk.
func (b *Bundle) genBlindRotationKey() (pos, neg []*glwe.Selector) {
	levelQ := b.params.MaxLevelQ()
	rQ := b.params.RingQ().AtLevel(levelQ)

	coeffs := rQ.NewRNSPoly()
	rQ.INTT(b.sk.Q, coeffs)
	rQ.IMForm(coeffs, coeffs)

	top := len(coeffs) - 1
	qi := rQ[top].Modulus
	skCoeffs := coeffs.At(top)

	N := b.params.N()
	pos = make([]*glwe.Selector, N)
	neg = make([]*glwe.Selector, N)
	for i := 0; i < N; i++ {
		var isOne, isMinusOne uint64
		switch skCoeffs[i] {
		case 1:
			isOne = 1
		case qi - 1:
			isMinusOne = 1
		}
		pos[i] = b.encryptScalarBit(isOne)
		neg[i] = b.encryptScalarBit(isMinusOne)
	}
	return pos, neg
}

// EncryptMonomialSelector encrypts X^exp as a fresh GGSW ciphertext
// (coordinate.Encryptor), the primitive every Coordinate and every
// circuit-bootstrapped FheUint bit is built from.
func (b *Bundle) EncryptMonomialSelector(exp int) *glwe.Selector {
	levelQ := b.params.MaxLevelQ()
	poly := b.params.RingQ().AtLevel(levelQ).NewMonomialXi(exp)

	pt, err := rlwe.NewPlaintextAtLevelFromPoly(levelQ, -1, poly, nil)
	if err != nil {
		panic(fmt.Errorf("keys: EncryptMonomialSelector(%d): %w", exp, err))
	}
	ct := rgsw.NewCiphertext(b.params.Parameters, levelQ, -1, b.dd)
	if err := b.ggsw.Encrypt(pt, ct); err != nil {
		panic(fmt.Errorf("keys: EncryptMonomialSelector(%d): %w", exp, err))
	}
	return ct
}

// InvertSelector returns the GGSW encryption of X^{-exp} given sel =
// Enc(X^exp) (coordinate.Inverter), homomorphically: it applies the
// automorphism X -> X^{-1} (Galois element order-2, atk_ggsw_inv) to
// sel's first row digit by digit, then rebuilds the second row with the
// tensor key via rgsw.Ciphertext.FromGadgetCiphertext (gglwe_to_ggsw_key,
// spec 4.3/4.10). X^{-1} applied to the monomial X^exp yields X^{-exp}
// directly, so no exponent arithmetic is needed. sk never enters this.
func (b *Bundle) InvertSelector(eval *glwe.Evaluator, sel *glwe.Selector) *glwe.Selector {
	g := b.params.GaloisElementOrderTwoOrthogonalSubgroup()

	row0 := sel.At(0)
	inv := rlwe.NewGadgetCiphertext(b.params.Parameters, 1, row0.LevelQ(), row0.LevelP(), row0.DigitDecomposition)

	dims := row0.Dims()
	for i := range dims {
		for j := range dims[i] {
			eval.Automorphism(row0.At(i, j), g, inv.At(i, j))
		}
	}

	out := new(rgsw.Ciphertext)
	if err := out.FromGadgetCiphertext(eval.Evaluator, inv); err != nil {
		panic(fmt.Errorf("keys: InvertSelector: %w", err))
	}
	return out
}

// CircuitBootstrap upgrades a GLWE-encrypted bit into a plain 0/1 GGSW
// selector (fheuint.Bootstrapper): a GGSW encrypting the constant
// polynomial 0 or 1, so that ExternalProduct against it scales its operand
// by the bit's value. This is what blindselect.Cmux and bdd's branch
// evaluation need; it must not be confused with EncryptMonomialSelector(1),
// which encrypts the rotation X^1 rather than the scalar 1.
//
// Implemented as a genuine CGGI-style blind rotation against the
// blind_rotation_key (spec 4.10): bit's own mask and body (public
// ciphertext components, not secret data) drive a CMUX cascade over
// brkPos/brkNeg that rotates a trivial accumulator by bit's phase, and the
// cleaned result is promoted into gadget form and tensored into a GGSW.
// The rotation uses only bit's own coefficients and the blind-rotation key;
// the promotion step adds a fresh encryption of zero made with Bundle's
// secret-key encryptor.
func (b *Bundle) CircuitBootstrap(eval *glwe.Evaluator, bit *glwe.Ciphertext) *glwe.Selector {
	acc := eval.TrivialBit(1)
	b.blindRotate(eval, acc, bit)
	return b.promoteToSelector(eval, acc)
}

// encryptScalarBit encrypts the constant polynomial value (0 or 1), the
// literal boolean selector CircuitBootstrap needs.
func (b *Bundle) encryptScalarBit(value uint64) *glwe.Selector {
	levelQ := b.params.MaxLevelQ()
	rQ := b.params.RingQ().AtLevel(levelQ)

	var poly ring.RNSPoly
	if value&1 == 0 {
		poly = rQ.NewRNSPoly() // the zero polynomial
	} else {
		poly = rQ.NewMonomialXi(0) // the constant polynomial 1
	}

	pt, err := rlwe.NewPlaintextAtLevelFromPoly(levelQ, -1, poly, nil)
	if err != nil {
		panic(fmt.Errorf("keys: encryptScalarBit(%d): %w", value, err))
	}
	ct := rgsw.NewCiphertext(b.params.Parameters, levelQ, -1, b.dd)
	if err := b.ggsw.Encrypt(pt, ct); err != nil {
		panic(fmt.Errorf("keys: encryptScalarBit(%d): %w", value, err))
	}
	return ct
}

// CircuitBootstrapWeighted is CircuitBootstrap scaled by weight
// (fheuint.Bootstrapper): the form an address digit's Coordinate needs,
// a GGSW encrypting X^{bit*weight} rather than the scalar bit.
//
// It reuses CircuitBootstrap's scalar-bit selector as a CMUX selector over
// two trivial (unencrypted, public) candidate ciphertexts representing
// X^0 and X^weight — the same trivial-ciphertext-plus-Cmux pattern
// package bdd's leaf evaluation already uses — then promotes the blended
// result the same way.
func (b *Bundle) CircuitBootstrapWeighted(eval *glwe.Evaluator, bit *glwe.Ciphertext, weight int) *glwe.Selector {
	sel01 := b.CircuitBootstrap(eval, bit)

	lo := b.trivialMonomial(eval, 0)
	hi := b.trivialMonomial(eval, weight)
	blended := glwe.NewCiphertext(b.params, lo.Degree(), lo.Level())
	blindselect.Cmux(eval, sel01, lo, hi, blended)

	return b.promoteToSelector(eval, blended)
}

// trivialMonomial returns the trivial (zero-mask, public) GLWE ciphertext
// whose body is the monomial X^exp, the same public-constant-ciphertext
// convention glwe.Evaluator.TrivialBit uses for BDD leaves.
func (b *Bundle) trivialMonomial(eval *glwe.Evaluator, exp int) *glwe.Ciphertext {
	levelQ := b.params.MaxLevelQ()
	ct := glwe.NewCiphertext(b.params, b.params.Rank, levelQ)
	rQ := b.params.RingQ().AtLevel(levelQ)
	ct.Q[0] = rQ.NewMonomialXi(exp)
	return ct
}

// sampleExtract reads bit's own mask and body coefficients — public
// ciphertext components, not secret data — into the scalar LWE-style pair
// (body, mask[0:N]) that a blind rotation consumes, via the standard
// negacyclic sample extraction at coefficient 0 (mask'_0 = mask_0,
// mask'_i = -mask_{N-i} for i>0). Reads the same top RNS limb
// glwe.Evaluator.TrivialBit/Bundle.decodeBit treat as the message channel.
func (b *Bundle) sampleExtract(bit *glwe.Ciphertext) (body uint64, mask []uint64, qi uint64) {
	levelQ := bit.Level()
	rQ := b.params.RingQ().AtLevel(levelQ)
	N := b.params.N()

	bodyCoeffs := rQ.NewRNSPoly()
	rQ.INTT(bit.Q[0], bodyCoeffs)
	rQ.IMForm(bodyCoeffs, bodyCoeffs)

	maskCoeffs := rQ.NewRNSPoly()
	rQ.INTT(bit.Q[1], maskCoeffs)
	rQ.IMForm(maskCoeffs, maskCoeffs)

	top := len(bodyCoeffs) - 1
	qi = rQ[top].Modulus
	body = bodyCoeffs.At(top)[0]

	a := maskCoeffs.At(top)
	mask = make([]uint64, N)
	mask[0] = a[0]
	for i := 1; i < N; i++ {
		mask[i] = (qi - a[N-i]) % qi
	}
	return body, mask, qi
}

// modSwitch rounds v (a residue mod qi) into the rotation domain [0,twoN),
// the scale every blind-rotation step works in.
func modSwitch(v, qi, twoN uint64) int {
	num := new(big.Int).SetUint64(v)
	num.Mul(num, new(big.Int).SetUint64(twoN))
	num.Lsh(num, 1)
	num.Add(num, new(big.Int).SetUint64(qi))
	den := new(big.Int).SetUint64(qi)
	den.Lsh(den, 1)
	num.Div(num, den)
	return int(new(big.Int).Mod(num, new(big.Int).SetUint64(twoN)).Uint64())
}

// blindRotate runs the CGGI blind-rotation cascade on acc in place,
// rotating it by bit's own phase: first by bit's body, then by each mask
// coefficient, each CMUX-gated by whether the corresponding sk coefficient
// (known only through brkPos/brkNeg) is +1 or -1. Only bit's own public
// mask/body and the blind-rotation key are consulted; sk itself never is.
func (b *Bundle) blindRotate(eval *glwe.Evaluator, acc *glwe.Ciphertext, bit *glwe.Ciphertext) {
	body, mask, qi := b.sampleExtract(bit)
	twoN := uint64(2 * b.params.N())

	rotated := glwe.NewCiphertext(b.params, acc.Degree(), acc.Level())
	eval.Rotate(acc, -modSwitch(body, qi, twoN), rotated)
	eval.Copy(rotated, acc)

	tmp := glwe.NewCiphertext(b.params, acc.Degree(), acc.Level())
	next := glwe.NewCiphertext(b.params, acc.Degree(), acc.Level())
	for i, ai := range mask {
		a := modSwitch(ai, qi, twoN)
		if a == 0 {
			continue
		}
		eval.Rotate(acc, -a, tmp)
		blindselect.Cmux(eval, b.brkPos[i], acc, tmp, next)
		eval.Copy(next, acc)

		eval.Rotate(acc, a, tmp)
		blindselect.Cmux(eval, b.brkNeg[i], acc, tmp, next)
		eval.Copy(next, acc)
	}
}

// promoteToSelector lifts a plain GLWE ciphertext into a fresh GGSW
// selector encrypting the same value, without decrypting it: it builds a
// scratch gadget ciphertext via a fresh EncryptZero (randomized, no
// secret/plaintext data beyond the bound key) and then places ct's own
// (public, already-computed) c0 and c1 components into it with
// rlwe.AddPlaintextToMatrix — the same per-digit CRT placement
// Encryptor.Encrypt uses for a plaintext, applied here to a ciphertext's
// two components independently. The second GGSW row is then rebuilt from
// that gadget-decomposed first row via the tensor (relinearization) key,
// exactly as InvertSelector's does.
func (b *Bundle) promoteToSelector(eval *glwe.Evaluator, ct *glwe.Ciphertext) *glwe.Selector {
	levelQ := ct.Level()
	gc := rlwe.NewGadgetCiphertext(b.params.Parameters, 1, levelQ, -1, b.dd)
	if err := b.glwe.EncryptZero(gc); err != nil {
		panic(fmt.Errorf("keys: promoteToSelector: %w", err))
	}

	rQ := b.params.RingQ().AtLevel(levelQ)
	rP := b.params.RingP()
	buff := rQ.NewRNSPoly()
	if err := rlwe.AddPlaintextToMatrix(rQ, rP, ct.Q[0], buff, gc.Vector[0], b.dd); err != nil {
		panic(fmt.Errorf("keys: promoteToSelector: %w", err))
	}
	if err := rlwe.AddPlaintextToMatrix(rQ, rP, ct.Q[1], buff, gc.Vector[1], b.dd); err != nil {
		panic(fmt.Errorf("keys: promoteToSelector: %w", err))
	}

	out := new(rgsw.Ciphertext)
	if err := out.FromGadgetCiphertext(eval.Evaluator, gc); err != nil {
		panic(fmt.Errorf("keys: promoteToSelector: %w", err))
	}
	return out
}

// EncryptBit encrypts a single plaintext bit (0 or 1) as a fresh GLWE
// ciphertext under sk, in the same constant-coefficient/top-limb encoding
// glwe.Evaluator.TrivialBit and decodeBit use: the trivial (zero-noise)
// encoding of bit, plus a fresh encryption of zero for real secret-key
// noise. This is the primitive package loader's plaintext Image is seeded
// into a vm.State's ROMs, registers and RAM with.
func (b *Bundle) EncryptBit(eval *glwe.Evaluator, bit uint64) *glwe.Ciphertext {
	trivial := eval.TrivialBit(bit)
	zero := rlwe.NewCiphertext(b.params.Parameters, trivial.Degree(), trivial.Level(), -1)
	if err := b.glwe.EncryptZero(zero); err != nil {
		panic(fmt.Errorf("keys: EncryptBit: %w", err))
	}
	out := glwe.NewCiphertext(b.params, trivial.Degree(), trivial.Level())
	eval.Add(trivial, zero, out)
	return out
}

// EncryptWord encrypts bits least-significant-bit first into a fresh
// fheuint.FheUint-shaped slice, the counterpart of DecryptWord.
func (b *Bundle) EncryptWord(eval *glwe.Evaluator, value uint32, width int) []*glwe.Ciphertext {
	out := make([]*glwe.Ciphertext, width)
	for i := range out {
		out[i] = b.EncryptBit(eval, uint64((value>>uint(i))&1))
	}
	return out
}

// DecryptBit decrypts a single GLWE-encrypted bit (debug.Shadow's only way
// to compare encrypted state against a plaintext mirror; spec 6.3's
// debug-mode assertion path never reaches into Bundle's private fields, only
// this exported decrypt surface).
func (b *Bundle) DecryptBit(ct *glwe.Ciphertext) uint64 {
	return b.decodeBit(ct)
}

// DecryptWord decrypts bits least-significant-bit first into a plain word,
// the form debug.Shadow compares register/RAM/PC values in.
func (b *Bundle) DecryptWord(bits []*glwe.Ciphertext) uint32 {
	var v uint32
	for i, bit := range bits {
		if b.decodeBit(bit) != 0 {
			v |= 1 << uint(i)
		}
	}
	return v
}

// NoiseBudget returns ct's remaining noise budget in bits: log2(Q) at ct's
// current level, minus the log2 standard deviation of ct's noise
// (rlwe.NoiseCiphertext, which Bundle can compute since it holds sk), minus
// one guard bit. debug.Shadow has no use for this (Assert only checks
// equality), but a caller instrumenting a long-running program can watch
// this trend toward zero across cycles well before Assert would ever
// actually disagree.
//
// Q is the product of every RNS modulus at ct's level, which easily exceeds
// what a float64 mantissa holds exactly past a handful of limbs; bigfloat.Log
// gives a correctly-rounded log2(Q) over the arbitrary-precision big.Int
// product instead of a hand-rolled sum-of-float64-logs approximation.
func (b *Bundle) NoiseBudget(ct *glwe.Ciphertext) float64 {
	noiseLog2 := rlwe.NoiseCiphertext(ct, nil, b.sk, b.params.Parameters)

	q := b.params.RingQ().AtLevel(ct.LevelQ()).Modulus()
	logQ := bigfloat.Log(new(big.Float).SetPrec(200).SetInt(q))
	log2Q, _ := new(big.Float).Quo(logQ, ln2).Float64()

	return log2Q - noiseLog2 - 1
}

// TraceTo performs the partial trace eval.Trace already implements,
// forwarded here only so Bundle satisfies ram.AutomorphismHelper
// alongside coordinate.Inverter: the automorphism
// keys Trace consults live in the evk this Bundle generated, not in Bundle
// itself, so there is nothing else for this method to do.
func (b *Bundle) TraceTo(eval *glwe.Evaluator, ct *glwe.Ciphertext, start, end int, opOut *glwe.Ciphertext) {
	eval.Trace(ct, start, end, opOut)
}

// decodeBit decrypts bit's constant coefficient and rounds it to 0 or 1,
// reading the same top RNS limb glwe.Evaluator.TrivialBit's leaf
// representation writes to (top limb, top bit carries the value).
func (b *Bundle) decodeBit(bit *glwe.Ciphertext) uint64 {
	dec := rlwe.NewDecryptor(b.params.Parameters, b.sk)
	pt := dec.DecryptNew(bit)

	rQ := b.params.RingQ().AtLevel(pt.Level())
	coeffs := rQ.NewRNSPoly()
	rQ.INTT(pt.Q, coeffs)
	rQ.IMForm(coeffs, coeffs)

	top := len(coeffs) - 1
	qi := rQ[top].Modulus
	v := coeffs.At(top)[0]
	if v > qi/2 {
		return 1
	}
	return 0
}
