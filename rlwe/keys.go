package rlwe

import (
	"bufio"
	"fmt"
	"io"

	"github.com/entropic-labs/fhevm/ring"
	"github.com/entropic-labs/fhevm/utils/buffer"
)

// SecretKey is the GLWE secret: a ring element sampled from the parameters'
// secret distribution, held in NTT and Montgomery form.
type SecretKey struct {
	ring.Point
}

func (*SecretKey) isEncryptionKey() {}

// NewSecretKey allocates a zero-value SecretKey at the parameters' maximum
// level, ready to be populated by KeyGenerator.GenSecretKey.
func NewSecretKey(params ParameterProvider) (sk *SecretKey) {
	p := params.GetRLWEParameters()
	return &SecretKey{Point: *ring.NewPoint(p.N(), p.MaxLevelQ(), p.MaxLevelP())}
}

// PublicKey is a degree-1 encryption of zero under a SecretKey, usable in
// place of it wherever a public (rather than interactive) encryptor is
// needed.
type PublicKey struct {
	*Ciphertext
}

func (*PublicKey) isEncryptionKey() {}

// NewPublicKey allocates a zero-value PublicKey at the parameters' maximum
// level, ready to be populated by KeyGenerator.GenPublicKey.
func NewPublicKey(params ParameterProvider) (pk *PublicKey) {
	p := params.GetRLWEParameters()
	return &PublicKey{Ciphertext: NewCiphertext(p, 1, p.MaxLevelQ(), p.MaxLevelP())}
}

// CompressionInfos is a placeholder for a GadgetCiphertext's optional
// compact on-disk encoding; this tree never populates it, so every
// GadgetCiphertext carries it nil.
type CompressionInfos struct{}

// EvaluationKeyParameters overrides the level and digit decomposition a
// generated key is built at; the zero value resolves to the parameters'
// maximum level and the caller-supplied digit decomposition.
type EvaluationKeyParameters struct {
	LevelQ             *int
	LevelP             *int
	DigitDecomposition DigitDecomposition
}

// ResolveEvaluationKeyParameters fills in the level/decomposition an
// EvaluationKey should be generated at: the first element of evkParams if
// present, else the parameters' maximum levels and a plain decomposition.
func ResolveEvaluationKeyParameters(params Parameters, evkParams []EvaluationKeyParameters) (levelQ, levelP int, dd DigitDecomposition) {
	levelQ, levelP = params.MaxLevelQ(), params.MaxLevelP()
	if len(evkParams) > 0 {
		p := evkParams[0]
		if p.LevelQ != nil {
			levelQ = *p.LevelQ
		}
		if p.LevelP != nil {
			levelP = *p.LevelP
		}
		dd = p.DigitDecomposition
	}
	return
}

// EvaluationKey re-encrypts a ciphertext under one secret into a ciphertext
// under another: the building block of relinearization, Galois/automorphism
// keys and ring-degree switching.
type EvaluationKey struct {
	GadgetCiphertext
}

// NewEvaluationKey allocates a zero-value EvaluationKey, sized per evkParams
// (or the parameters' maximum level with a plain decomposition).
func NewEvaluationKey(params ParameterProvider, evkParams ...EvaluationKeyParameters) (evk *EvaluationKey) {
	p := params.GetRLWEParameters()
	levelQ, levelP, dd := ResolveEvaluationKeyParameters(*p, evkParams)
	return &EvaluationKey{GadgetCiphertext: *NewGadgetCiphertext(p, 1, levelQ, levelP, dd)}
}

// RelinearizationKey re-encrypts the sk^2 term produced by a ciphertext
// multiplication back down to sk.
type RelinearizationKey struct {
	EvaluationKey
}

// NewRelinearizationKey allocates a zero-value RelinearizationKey.
func NewRelinearizationKey(params ParameterProvider, evkParams ...EvaluationKeyParameters) (rlk *RelinearizationKey) {
	return &RelinearizationKey{EvaluationKey: *NewEvaluationKey(params, evkParams...)}
}

// GaloisKey is an EvaluationKey specialized for one Galois automorphism:
// re-encrypting a ciphertext under pi_{galEl^-1}(sk) into one under sk, so
// that applying the automorphism X -> X^galEl afterwards yields Enc_sk(pi(m)).
type GaloisKey struct {
	EvaluationKey
	NthRoot       uint64
	GaloisElement uint64
}

// NewGaloisKey allocates a zero-value GaloisKey.
func NewGaloisKey(params ParameterProvider, evkParams ...EvaluationKeyParameters) (gk *GaloisKey) {
	p := params.GetRLWEParameters()
	return &GaloisKey{
		EvaluationKey: *NewEvaluationKey(params, evkParams...),
		NthRoot:       p.RingQ().NthRoot(),
	}
}

// BinarySize returns the serialized size of the receiver in bytes.
func (gk *GaloisKey) BinarySize() int {
	return 16 + gk.EvaluationKey.BinarySize()
}

// WriteTo writes the receiver to w, implementing io.WriterTo.
func (gk *GaloisKey) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:
		var inc int64
		if inc, err = buffer.WriteUint64(w, gk.GaloisElement); err != nil {
			return n + inc, err
		}
		n += inc
		if inc, err = buffer.WriteUint64(w, gk.NthRoot); err != nil {
			return n + inc, err
		}
		n += inc
		inc, err = gk.EvaluationKey.WriteTo(w)
		return n + inc, err
	default:
		return gk.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads a GaloisKey from r, implementing io.ReaderFrom.
func (gk *GaloisKey) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:
		var inc int64
		if inc, err = buffer.ReadUint64(r, &gk.GaloisElement); err != nil {
			return n + inc, err
		}
		n += inc
		if inc, err = buffer.ReadUint64(r, &gk.NthRoot); err != nil {
			return n + inc, err
		}
		n += inc
		inc, err = gk.EvaluationKey.ReadFrom(r)
		return n + inc, err
	default:
		return gk.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the receiver into a newly allocated slice of bytes.
func (gk *GaloisKey) MarshalBinary() (data []byte, err error) {
	buf := buffer.NewBufferSize(gk.BinarySize())
	_, err = gk.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice produced by MarshalBinary or WriteTo.
func (gk *GaloisKey) UnmarshalBinary(p []byte) (err error) {
	_, err = gk.ReadFrom(buffer.NewBuffer(p))
	return
}

// EvaluationKeySet is the read-only key store an Evaluator consults:
// every Galois key it may need to apply, plus the RelinearizationKey.
type EvaluationKeySet interface {
	GetGaloisKeysList() (galEls []uint64)
	GetGaloisKey(galEl uint64) (gk *GaloisKey, err error)
	GetRelinearizationKey() (rlk *RelinearizationKey, err error)
}

// MemEvaluationKeySet is the in-memory EvaluationKeySet every key-generating
// caller in this tree uses: a plain map of Galois keys plus an optional
// RelinearizationKey.
type MemEvaluationKeySet struct {
	RelinearizationKey *RelinearizationKey
	GaloisKeys         map[uint64]*GaloisKey
}

// NewMemEvaluationKeySet collects rlk (nil if relinearization is unused) and
// gks into a MemEvaluationKeySet, keyed by each GaloisKey's own GaloisElement.
func NewMemEvaluationKeySet(rlk *RelinearizationKey, gks ...*GaloisKey) (evk *MemEvaluationKeySet) {
	gkMap := make(map[uint64]*GaloisKey, len(gks))
	for _, gk := range gks {
		gkMap[gk.GaloisElement] = gk
	}
	return &MemEvaluationKeySet{RelinearizationKey: rlk, GaloisKeys: gkMap}
}

// GetGaloisKeysList returns every Galois element this set holds a key for.
func (evk *MemEvaluationKeySet) GetGaloisKeysList() (galEls []uint64) {
	galEls = make([]uint64, 0, len(evk.GaloisKeys))
	for galEl := range evk.GaloisKeys {
		galEls = append(galEls, galEl)
	}
	return
}

// GetGaloisKey returns the key for galEl, or an error if it is missing.
func (evk *MemEvaluationKeySet) GetGaloisKey(galEl uint64) (gk *GaloisKey, err error) {
	var ok bool
	if gk, ok = evk.GaloisKeys[galEl]; !ok {
		return nil, fmt.Errorf("GaloisKey[galEl=%d] is missing", galEl)
	}
	return
}

// GetRelinearizationKey returns the set's RelinearizationKey, or an error if
// none was generated.
func (evk *MemEvaluationKeySet) GetRelinearizationKey() (rlk *RelinearizationKey, err error) {
	if evk.RelinearizationKey == nil {
		return nil, fmt.Errorf("RelinearizationKey is missing")
	}
	return evk.RelinearizationKey, nil
}

// BinarySize returns the serialized size of the receiver in bytes.
func (evk *MemEvaluationKeySet) BinarySize() int {
	size := 1
	if evk.RelinearizationKey != nil {
		size += evk.RelinearizationKey.BinarySize()
	}
	size += 8
	for _, gk := range evk.GaloisKeys {
		size += gk.BinarySize()
	}
	return size
}

// WriteTo writes the receiver to w, implementing io.WriterTo.
func (evk *MemEvaluationKeySet) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:
		var inc int64

		hasRlk := uint8(0)
		if evk.RelinearizationKey != nil {
			hasRlk = 1
		}
		if inc, err = buffer.WriteUint8(w, hasRlk); err != nil {
			return n + inc, err
		}
		n += inc

		if evk.RelinearizationKey != nil {
			if inc, err = evk.RelinearizationKey.WriteTo(w); err != nil {
				return n + inc, err
			}
			n += inc
		}

		if inc, err = buffer.WriteUint64(w, uint64(len(evk.GaloisKeys))); err != nil {
			return n + inc, err
		}
		n += inc

		for _, galEl := range evk.GetGaloisKeysList() {
			if inc, err = evk.GaloisKeys[galEl].WriteTo(w); err != nil {
				return n + inc, err
			}
			n += inc
		}

		return n, nil
	default:
		return evk.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads a MemEvaluationKeySet from r, implementing io.ReaderFrom.
func (evk *MemEvaluationKeySet) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:
		var inc int64

		var hasRlk uint8
		if inc, err = buffer.ReadUint8(r, &hasRlk); err != nil {
			return n + inc, err
		}
		n += inc

		if hasRlk == 1 {
			evk.RelinearizationKey = new(RelinearizationKey)
			if inc, err = evk.RelinearizationKey.ReadFrom(r); err != nil {
				return n + inc, err
			}
			n += inc
		}

		var count uint64
		if inc, err = buffer.ReadUint64(r, &count); err != nil {
			return n + inc, err
		}
		n += inc

		evk.GaloisKeys = make(map[uint64]*GaloisKey, count)
		for i := uint64(0); i < count; i++ {
			gk := new(GaloisKey)
			if inc, err = gk.ReadFrom(r); err != nil {
				return n + inc, err
			}
			n += inc
			evk.GaloisKeys[gk.GaloisElement] = gk
		}

		return n, nil
	default:
		return evk.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the receiver into a newly allocated slice of bytes.
func (evk *MemEvaluationKeySet) MarshalBinary() (data []byte, err error) {
	buf := buffer.NewBufferSize(evk.BinarySize())
	_, err = evk.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice produced by MarshalBinary or WriteTo.
func (evk *MemEvaluationKeySet) UnmarshalBinary(p []byte) (err error) {
	_, err = evk.ReadFrom(buffer.NewBuffer(p))
	return
}
