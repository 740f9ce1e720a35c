package reads

import "github.com/dreamware/readtrie/internal/errs"

// ReverseComplement complements each base (A<->T, C<->G) and reverses
// the result. Any character outside ACGT, including N, is rejected:
// the complement of an ambiguous base is undefined here.
//
// This is an auxiliary helper for downstream tooling; it is not called
// anywhere in the trie or overlap algorithms, which index the forward
// strand only.
func ReverseComplement(seq string) (string, error) {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		var c byte
		switch seq[len(seq)-1-i] {
		case 'A', 'a':
			c = 'T'
		case 'T', 't':
			c = 'A'
		case 'G', 'g':
			c = 'C'
		case 'C', 'c':
			c = 'G'
		default:
			return "", errs.New(errs.InputMalformed, "reads: reverse-complement expects one of [ACGT]", nil)
		}
		out[i] = c
	}
	return string(out), nil
}
