package ir

import (
	"encoding/binary"
	"math"

	"golang.org/x/crypto/blake2b"

	"isle/internal/value"
)

type fingerprint [blake2b.Size256]byte

// fingerprintOf hashes scalar constants. Other kinds are never shared
// between slots and report false.
func fingerprintOf(v value.Value) (fingerprint, bool) {
	buf := []byte{byte(v.Kind)}
	switch v.Kind {
	case value.KindNope:
	case value.KindBoolean:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case value.KindInteger:
		buf = append(buf, v.Int.Text(16)...)
	case value.KindFloat:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float))
	case value.KindRune:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v.Rune))
	case value.KindString, value.KindBind, value.KindReference:
		buf = append(buf, v.Str...)
	case value.KindBytes:
		buf = append(buf, v.Bytes...)
	case value.KindList:
		if !v.IsNil() {
			return fingerprint{}, false
		}
	default:
		return fingerprint{}, false
	}
	return blake2b.Sum256(buf), true
}
