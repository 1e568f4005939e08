package query

import (
	"crypto/sha256"
	"fmt"
)

// Digest is a 256-bit structural hash, compatible with project.Digest and
// source.File.Hash.
type Digest [32]byte

// Key identifies a memoized query: the registered query function's name plus
// a structural hash of its input. Two calls with the same Func and
// bitwise-equal Input refer to the same cache entry, whatever Go value the
// input was derived from.
type Key struct {
	Func  string
	Input Digest
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%x", k.Func, k.Input[:8])
}

// HashDigests combines a query function name with one or more pre-computed
// digests (e.g. project.Digest for a module's content hash, or another Key's
// Input) into a Key, mirroring project.Combine's H(content || dep1 || dep2
// ...) idiom so query keys compose the same way module hashes do.
func HashDigests(fn string, digests ...Digest) Key {
	h := sha256.New()
	for _, d := range digests {
		h.Write(d[:])
	}
	var sum Digest
	copy(sum[:], h.Sum(nil))
	return Key{Func: fn, Input: sum}
}

// HashValue derives a Key from a query function name and an arbitrary
// comparable input by hashing its %#v representation. Suitable for inputs
// that are small scalars, interned IDs, or strings; callers already holding
// a structural digest (AST content hash, module hash) should prefer
// HashDigests instead, which avoids the fmt fallback's formatting cost and
// the (small) risk that two distinct values format identically.
func HashValue(fn string, input any) Key {
	h := sha256.New()
	fmt.Fprintf(h, "%#v", input)
	var sum Digest
	copy(sum[:], h.Sum(nil))
	return Key{Func: fn, Input: sum}
}
