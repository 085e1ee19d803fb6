package util

import "strings"

// An ASCIISet represents a set of ASCII bytes.
type ASCIISet [8]uint32

// MakeASCIISet creates a set of the ASCII characters in chars.
// All bytes in chars are assumed to be less < utf8.RuneSelf.
func MakeASCIISet(chars string) ASCIISet {
	var as ASCIISet
	for i := range len(chars) {
		c := chars[i]
		as[c/32] |= 1 << (c % 32)
	}
	return as
}

// Contains reports whether c is inside the set.
func (as *ASCIISet) Contains(c byte) bool {
	return (as[c/32] & (1 << (c % 32))) != 0
}

// Fields splits s around each run of one or more bytes contained in seps
// and returns the non-empty substrings of s.
// It returns nil if s contains only bytes from seps.
func Fields(s string, seps *ASCIISet) []string {
	var res []string
	start := -1
	for i := range len(s) {
		if seps.Contains(s[i]) {
			if start >= 0 {
				res = append(res, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		res = append(res, s[start:])
	}
	return res
}

// ByteLowercase returns a [byte-lowercase] version of str.
//
// [byte-lowercase]: https://infra.spec.whatwg.org/#byte-lowercase
func ByteLowercase(str string) string {
	return strings.Map(byteLowercaseOne, str)
}

func byteLowercaseOne(asciiRune rune) rune {
	if 'A' <= asciiRune && asciiRune <= 'Z' {
		return asciiRune + toLower
	}
	return asciiRune
}

// ByteUppercase returns a [byte-uppercase] version of str.
//
// [byte-uppercase]: https://infra.spec.whatwg.org/#byte-uppercase
func ByteUppercase(str string) string {
	return strings.Map(byteUppercaseOne, str)
}

func byteUppercaseOne(asciiRune rune) rune {
	if 'a' <= asciiRune && asciiRune <= 'z' {
		return asciiRune - toLower
	}
	return asciiRune
}

const toLower = 'a' - 'A'
