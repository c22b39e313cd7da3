package qptrie

import "fmt"

// maxKeyShifts bounds the length of an encoded key, mirroring the spec's
// 512-shift ceiling (a 255-byte wire name, each byte worst-case expanding
// to two shifts, plus label separators and the terminator, comfortably
// fits under this bound).
const maxKeyShifts = 512

// encode converts a Name into the ordered sequence of shifts the trie
// indexes on. Labels are visited starting from the rightmost (top-level)
// label and working left — see name.go's Compare doc comment — so that
// the shift sequence's lexicographic order matches canonical DNS name
// order exactly. A NOBYTE separates consecutive labels, and the key ends
// with a doubled NOBYTE terminator (so a name can never be a strict
// prefix of another name's key without the terminator distinguishing
// them).
func encode(n Name) ([]shift, error) {
	labels := n.Labels()
	key := make([]shift, 0, len(n.Wire())+2)

	for i := len(labels) - 1; i >= 0; i-- {
		for _, b := range labels[i] {
			s1, s2, two := byteShifts(foldByte(b))
			key = append(key, s1)
			if two {
				key = append(key, s2)
			}
			if len(key) > maxKeyShifts {
				return nil, newError("encode", KindKeyOverflow,
					fmt.Errorf("name %q exceeds %d shifts", n, maxKeyShifts))
			}
		}
		key = append(key, noByte)
	}
	key = append(key, noByte)

	if len(key) > maxKeyShifts {
		return nil, newError("encode", KindKeyOverflow,
			fmt.Errorf("name %q exceeds %d shifts", n, maxKeyShifts))
	}
	return key, nil
}
