package rlwe

import (
	"github.com/entropic-labs/fhevm/ring"
)

type Element interface {
	N() int
	LogN() int
	Degree() int
	Level() int
	LevelQ() int
	LevelP() int
	AsPoint() *ring.Point
	AsVector() *ring.Vector
	AsPlaintext() *Plaintext
	AsCiphertext() *Ciphertext
}
