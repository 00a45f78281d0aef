package clarval

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeHex renders a value in the 0x-prefixed form the node RPC expects.
func EncodeHex(v Value) (string, error) {
	raw, err := v.Encode()
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// DecodeHex parses a node RPC result. The 0x prefix is optional.
func DecodeHex(s string) (Value, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrorInvalidEncoding, err)
	}
	return Decode(raw)
}
