package sshpool

import (
	"crypto/rand"
	"math/big"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newRandomID samples 8 characters uniformly from [A-Z0-9], the id
// scheme shared by lease ids and task ids.
func newRandomID() string {
	buf := make([]byte, 8)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idAlphabet))))
		if err != nil {
			// crypto/rand failing is unrecoverable in practice; not worth
			// threading an error through every id-generation call site.
			panic(err)
		}
		buf[i] = idAlphabet[n.Int64()]
	}
	return string(buf)
}

// newUniqueID retries newRandomID until it finds an id not present in
// exists. Collisions are vanishingly rare at realistic populations,
// so no bound is placed on retries.
func newUniqueID(exists func(id string) bool) string {
	for {
		id := newRandomID()
		if !exists(id) {
			return id
		}
	}
}

// NewUniqueID exposes the same 8-character [A-Z0-9] id scheme to other
// packages; the supervisor's task ids use it too.
func NewUniqueID(exists func(id string) bool) string {
	return newUniqueID(exists)
}
