// Package base64codec implements the whitespace-tolerant, fixed-alphabet
// Base64 transform used to render binary blobs (common-section ciphertext,
// per-field secret values) as JSON strings.
package base64codec

import (
	"fmt"

	"mpm/internal/apperr"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var decodeTable [256]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i, c := range alphabet {
		decodeTable[byte(c)] = int8(i)
	}
}

// Encode renders src as standard-alphabet Base64 with '=' padding.
func Encode(src []byte) string {
	out := make([]byte, 0, (len(src)+2)/3*4)
	for i := 0; i < len(src); i += 3 {
		var b0, b1, b2 byte
		n := len(src) - i
		b0 = src[i]
		if n > 1 {
			b1 = src[i+1]
		}
		if n > 2 {
			b2 = src[i+2]
		}

		out = append(out, alphabet[b0>>2])
		out = append(out, alphabet[(b0&0x03)<<4|(b1>>4)])
		if n > 1 {
			out = append(out, alphabet[(b1&0x0f)<<2|(b2>>6)])
		} else {
			out = append(out, '=')
		}
		if n > 2 {
			out = append(out, alphabet[b2&0x3f])
		} else {
			out = append(out, '=')
		}
	}
	return string(out)
}

// Decode parses a Base64 string, skipping space/CR/LF between characters,
// and stops once it has produced maxLen bytes (0 means unbounded). Input
// that ends with a partial group and no '=' padding is rejected. It
// returns the decoded bytes and, for length-bounded callers, how many
// bytes were actually produced.
func Decode(s string, maxLen int) ([]byte, error) {
	out := make([]byte, 0, len(s)/4*3+3)
	var quartet [4]byte
	qn := 0
	pads := 0

	flush := func() error {
		if qn == 0 {
			return nil
		}
		if qn < 2 {
			return fmt.Errorf("%w: base64: unexpected end of input", apperr.ErrInvalidArg)
		}
		v0, v1 := quartet[0], quartet[1]
		out = append(out, v0<<2|v1>>4)
		if qn >= 3 {
			v2 := quartet[2]
			out = append(out, v1<<4|v2>>2)
		}
		if qn == 4 {
			v2, v3 := quartet[2], quartet[3]
			out = append(out, v2<<6|v3)
		}
		qn = 0
		return nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\r' || c == '\n' {
			continue
		}
		if c == '=' {
			pads++
			continue
		}
		v := decodeTable[c]
		if v < 0 {
			return nil, fmt.Errorf("%w: base64: invalid character %q", apperr.ErrInvalidArg, c)
		}
		quartet[qn] = byte(v)
		qn++
		if qn == 4 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if maxLen > 0 && len(out) >= maxLen {
			return out[:maxLen], nil
		}
	}
	if qn > 0 && pads == 0 {
		return nil, fmt.Errorf("%w: base64: unexpected end of input", apperr.ErrInvalidArg)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if maxLen > 0 && len(out) > maxLen {
		out = out[:maxLen]
	}
	return out, nil
}
