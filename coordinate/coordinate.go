// Package coordinate implements encrypted addressing (spec 4.3, component
// C4): a Coordinate represents one base-N digit of an encrypted integer as a
// GGSW encryption of X^{digit}, and an Address chains Coordinates across the
// tree depth a RAM lookup needs. Multiplying (external-producting) a GLWE by
// a Coordinate rotates its coefficients by the encrypted digit value,
// exactly the "blind rotation" primitive package ram's tree reads/writes
// are built from.
package coordinate

import (
	"fmt"

	"github.com/entropic-labs/fhevm/glwe"
)

// Digit describes one level of a base-N digit schedule: how many bits this
// digit occupies (so the address space partitions as spec 4.3 describes;
// DECOMP_N in spec 3.1).
type Digit struct {
	Bits int // digit occupies [0, 2^Bits) values
}

// Max returns 2^Bits, the exclusive upper bound of this digit's value range.
func (d Digit) Max() int { return 1 << d.Bits }

// Schedule is an ordered list of Digits, least-significant first,
// partitioning an address space of size product(2^d.Bits for d in
// Schedule). Each digit's Coordinate must encrypt X^{digit * weight}, where
// weight is the product of every finer (earlier) digit's Max; Weight
// computes that for index i.
type Schedule []Digit

// Max returns the total addressable range product(d.Max()).
func (s Schedule) Max() int {
	m := 1
	for _, d := range s {
		m *= d.Max()
	}
	return m
}

// Weight returns the place-value multiplier of digit i: the product of
// every digit's Max at index < i. Digit 0 always has weight 1.
func (s Schedule) Weight(i int) int {
	w := 1
	for j := 0; j < i; j++ {
		w *= s[j].Max()
	}
	return w
}

// Coordinate is one digit of an encrypted address: a GGSW encryption of
// X^{value << shift}, where shift accounts for the finer digits already
// consumed before this tree level (spec invariant I3: the product of all
// digit-GGSWs under the schedule equals X^a).
type Coordinate struct {
	selector *glwe.Selector
	inverse  bool // true if this Coordinate encrypts X^{-a} rather than X^{+a}
}

// NewEncrypted builds a Coordinate encrypting X^{value*weight}, value in
// [0, digit.Max()), as a fresh GGSW ciphertext under sk. weight is the
// digit's place value within its Schedule (Schedule.Weight). inverse
// controls whether the encoded exponent is +value*weight or -value*weight
// (spec 4.3's prepare_inv is the encrypted-domain equivalent of
// constructing this with inverse flipped without ever learning value in
// cleartext).
func NewEncrypted(eval *glwe.Evaluator, enc Encryptor, value int, weight int, digit Digit, inverse bool) *Coordinate {
	if value < 0 || value >= digit.Max() {
		panic(fmt.Errorf("coordinate: value %d out of range [0,%d)", value, digit.Max()))
	}
	exp := value * weight
	if inverse {
		exp = -exp
	}
	sel := enc.EncryptMonomialSelector(exp)
	return &Coordinate{selector: sel, inverse: inverse}
}

// Encryptor is the narrow interface Coordinate needs from the key-holder
// side: encrypt a GGSW selector for a monomial X^exp. Implemented by
// package keys' secret-key encryptor; kept as an interface here so tests can
// substitute a plaintext stand-in.
type Encryptor interface {
	EncryptMonomialSelector(exp int) *glwe.Selector
}

// Product computes opOut = ct * X^{encoded exponent}, the blind rotation of
// ct by this Coordinate's digit (spec 4.3's coord.product).
func (c *Coordinate) Product(eval *glwe.Evaluator, ct *glwe.Ciphertext, opOut *glwe.Ciphertext) {
	eval.ExternalProduct(c.selector, ct, opOut)
}

// ProductInplace is Product with ct as both input and output.
func (c *Coordinate) ProductInplace(eval *glwe.Evaluator, ct *glwe.Ciphertext) {
	c.Product(eval, ct, ct)
}

// FromSelector wraps an already-encrypted GGSW selector as a Coordinate,
// for callers (package fheuint's circuit-bootstrap output) that produce the
// selector directly rather than through NewEncrypted.
func FromSelector(sel *glwe.Selector, inverse bool) *Coordinate {
	return &Coordinate{selector: sel, inverse: inverse}
}

// Selector exposes the underlying GGSW selector, e.g. for use as a BDD CMUX
// input or a blind-select rotation amount.
func (c *Coordinate) Selector() *glwe.Selector { return c.selector }

// Inverse reports whether this Coordinate encodes the negated exponent.
func (c *Coordinate) Inverse() bool { return c.inverse }

// PrepareInv derives the Coordinate encrypting the negated exponent of the
// receiver, using the GGSW inversion (automorphism by -1) and tensor keys
// (spec 4.3, 4.10). This is what lets a RAM write undo the rotation a prior
// read_statefull applied without the write ever learning the address in
// cleartext.
func (c *Coordinate) PrepareInv(eval *glwe.Evaluator, inv Inverter) *Coordinate {
	return &Coordinate{selector: inv.InvertSelector(eval, c.selector), inverse: !c.inverse}
}

// Inverter is the narrow interface for converting a GGSW encryption of
// X^a into one of X^{-a}, using the GGSW-level automorphism-by-(-1) key
// and the GGLWE-to-GGSW tensor key (spec 4.10: atk_ggsw_inv,
// gglwe_to_ggsw_key). Implemented by package keys.
type Inverter interface {
	InvertSelector(eval *glwe.Evaluator, sel *glwe.Selector) *glwe.Selector
}

// Address is an ordered sequence of Coordinates, one per RAM tree level
// (spec invariant I4: for every level l, the product of the first l
// Coordinates equals X^{a mod N^l}).
type Address struct {
	Coordinates []*Coordinate
	Schedule    Schedule
}

// NewEncryptedAddress builds an Address encrypting value in
// [0, schedule.Max()), decomposing value into schedule's digits
// little-endian (least-significant digit first, matching spec 4.3's
// "remain /= max" iteration).
func NewEncryptedAddress(eval *glwe.Evaluator, enc Encryptor, value int, schedule Schedule, inverse bool) *Address {
	if value < 0 || value >= schedule.Max() {
		panic(fmt.Errorf("coordinate: address %d out of range [0,%d)", value, schedule.Max()))
	}
	coords := make([]*Coordinate, len(schedule))
	remain := value
	for i, d := range schedule {
		digitVal := remain % d.Max()
		coords[i] = NewEncrypted(eval, enc, digitVal, schedule.Weight(i), d, inverse)
		remain /= d.Max()
	}
	return &Address{Coordinates: coords, Schedule: schedule}
}

// Depth returns the RAM tree depth this Address addresses.
func (a *Address) Depth() int { return len(a.Coordinates) }

// At returns the Coordinate for tree level i.
func (a *Address) At(i int) *Coordinate { return a.Coordinates[i] }

// Max returns the addressable range of the whole Address.
func (a *Address) Max() int { return a.Schedule.Max() }

// BlindRotate applies the full address's rotation to ct, i.e. multiplies by
// X^{sum of every Coordinate's encoded exponent}, by chaining external
// products across every digit (spec 4.3: the per-level GGSWs compose
// exactly like mixed-radix digits of a single rotation amount). tmp is a
// scratch ciphertext of ct's shape used between chained products.
func (a *Address) BlindRotate(eval *glwe.Evaluator, ct *glwe.Ciphertext, opOut *glwe.Ciphertext, tmp *glwe.Ciphertext) {
	if len(a.Coordinates) == 0 {
		eval.Copy(ct, opOut)
		return
	}
	cur := ct
	for i, c := range a.Coordinates {
		var dst *glwe.Ciphertext
		if i == len(a.Coordinates)-1 {
			dst = opOut
		} else if i%2 == 0 {
			dst = tmp
		} else {
			dst = opOut
		}
		c.Product(eval, cur, dst)
		cur = dst
	}
	if cur != opOut {
		eval.Copy(cur, opOut)
	}
}

// Inverted returns the Address encrypting the negated rotation amount of
// the receiver, one PrepareInv per Coordinate (spec 4.3: undoing a
// BlindRotate is rotating back by the same amount, in the other
// direction).
func (a *Address) Inverted(eval *glwe.Evaluator, inv Inverter) *Address {
	coords := make([]*Coordinate, len(a.Coordinates))
	for i, c := range a.Coordinates {
		coords[i] = c.PrepareInv(eval, inv)
	}
	return &Address{Coordinates: coords, Schedule: a.Schedule}
}
