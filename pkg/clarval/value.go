// Package clarval implements the typed value encoding shared by contract
// call arguments and read-only query results. Each value serializes as a
// single type byte followed by a type-specific payload.
package clarval

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/btcsuite/btcutil/base58"

	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

type Kind byte

const (
	KindUint         Kind = 0x01
	KindTrue         Kind = 0x03
	KindFalse        Kind = 0x04
	KindPrincipal    Kind = 0x05
	KindResponseOk   Kind = 0x07
	KindResponseErr  Kind = 0x08
	KindOptionalNone Kind = 0x09
	KindOptionalSome Kind = 0x0a
	KindTuple        Kind = 0x0c
	KindStringASCII  Kind = 0x0d
	KindStringUTF8   Kind = 0x0e
)

const principalPayloadSize = 20

var (
	ErrorInvalidEncoding = errors.New("invalid value encoding")
	ErrorWrongKind       = errors.New("unexpected value kind")
)

type Value struct {
	kind      Kind
	uintVal   uint64
	strVal    string
	principal principal.Principal
	inner     *Value
	entries   []TupleEntry
}

// TupleEntry is one named field of a tuple value. Entries serialize in the
// order given; contract tuples arrive with a stable field order.
type TupleEntry struct {
	Name  string
	Value Value
}

func (v Value) Kind() Kind { return v.kind }

func Uint(u uint64) Value {
	return Value{kind: KindUint, uintVal: u}
}

func Bool(b bool) Value {
	if b {
		return Value{kind: KindTrue}
	}
	return Value{kind: KindFalse}
}

func StringASCII(s string) Value {
	return Value{kind: KindStringASCII, strVal: s}
}

func StringUTF8(s string) Value {
	return Value{kind: KindStringUTF8, strVal: s}
}

func Principal(p principal.Principal) Value {
	return Value{kind: KindPrincipal, principal: p}
}

func None() Value {
	return Value{kind: KindOptionalNone}
}

func Some(inner Value) Value {
	return Value{kind: KindOptionalSome, inner: &inner}
}

func Ok(inner Value) Value {
	return Value{kind: KindResponseOk, inner: &inner}
}

func Err(inner Value) Value {
	return Value{kind: KindResponseErr, inner: &inner}
}

func Tuple(entries ...TupleEntry) Value {
	return Value{kind: KindTuple, entries: entries}
}

func (v Value) IsNone() bool {
	return v.kind == KindOptionalNone
}

// Unwrap strips an optional-some or response-ok wrapper. A bare value is
// returned unchanged; a response-err surfaces the inner value as an error.
func (v Value) Unwrap() (Value, error) {
	switch v.kind {
	case KindOptionalSome, KindResponseOk:
		return *v.inner, nil
	case KindResponseErr:
		return Value{}, fmt.Errorf("contract returned error value: %s", v.inner.describe())
	default:
		return v, nil
	}
}

func (v Value) AsUint() (uint64, error) {
	if v.kind != KindUint {
		return 0, fmt.Errorf("%w: want uint, got 0x%02x", ErrorWrongKind, byte(v.kind))
	}
	return v.uintVal, nil
}

func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindTrue:
		return true, nil
	case KindFalse:
		return false, nil
	default:
		return false, fmt.Errorf("%w: want bool, got 0x%02x", ErrorWrongKind, byte(v.kind))
	}
}

func (v Value) AsString() (string, error) {
	if v.kind != KindStringASCII && v.kind != KindStringUTF8 {
		return "", fmt.Errorf("%w: want string, got 0x%02x", ErrorWrongKind, byte(v.kind))
	}
	return v.strVal, nil
}

func (v Value) AsPrincipal() (principal.Principal, error) {
	if v.kind != KindPrincipal {
		return "", fmt.Errorf("%w: want principal, got 0x%02x", ErrorWrongKind, byte(v.kind))
	}
	return v.principal, nil
}

// Field looks up a tuple entry by name.
func (v Value) Field(name string) (Value, error) {
	if v.kind != KindTuple {
		return Value{}, fmt.Errorf("%w: want tuple, got 0x%02x", ErrorWrongKind, byte(v.kind))
	}
	for _, e := range v.entries {
		if e.Name == name {
			return e.Value, nil
		}
	}
	return Value{}, fmt.Errorf("%w: tuple has no field %q", ErrorInvalidEncoding, name)
}

func (v Value) describe() string {
	switch v.kind {
	case KindUint:
		return fmt.Sprintf("u%d", v.uintVal)
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindPrincipal:
		return string(v.principal)
	case KindStringASCII, KindStringUTF8:
		return fmt.Sprintf("%q", v.strVal)
	case KindOptionalNone:
		return "none"
	case KindOptionalSome:
		return fmt.Sprintf("(some %s)", v.inner.describe())
	case KindResponseOk:
		return fmt.Sprintf("(ok %s)", v.inner.describe())
	case KindResponseErr:
		return fmt.Sprintf("(err %s)", v.inner.describe())
	case KindTuple:
		fields := make([]string, 0, len(v.entries))
		for _, e := range v.entries {
			fields = append(fields, fmt.Sprintf("%s: %s", e.Name, e.Value.describe()))
		}
		return "{" + strings.Join(fields, ", ") + "}"
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(v.kind))
}

func (v Value) String() string {
	return v.describe()
}

// Encode serializes the value to its wire form.
func (v Value) Encode() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := v.writeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeTo(buf *bytes.Buffer) error {
	buf.WriteByte(byte(v.kind))

	switch v.kind {
	case KindUint:
		// 16-byte big-endian; the contract type is a 128-bit unsigned
		// integer, carried here in the low 8 bytes.
		padding := make([]byte, 8)
		buf.Write(padding)
		if err := binary.Write(buf, binary.BigEndian, v.uintVal); err != nil {
			return fmt.Errorf("encoding uint: %w", err)
		}

	case KindTrue, KindFalse, KindOptionalNone:
		// type byte only

	case KindPrincipal:
		payload, version, err := base58.CheckDecode(string(v.principal))
		if err != nil {
			return fmt.Errorf("encoding principal: %w", err)
		}
		if len(payload) != principalPayloadSize {
			return fmt.Errorf("encoding principal: bad payload length %d", len(payload))
		}
		buf.WriteByte(version)
		buf.Write(payload)

	case KindOptionalSome, KindResponseOk, KindResponseErr:
		if err := v.inner.writeTo(buf); err != nil {
			return err
		}

	case KindStringASCII:
		for _, r := range v.strVal {
			if r > 0x7f {
				return fmt.Errorf("encoding ascii string: non-ascii rune %q", r)
			}
		}
		writeLengthPrefixed(buf, []byte(v.strVal))

	case KindStringUTF8:
		if !utf8.ValidString(v.strVal) {
			return errors.New("encoding utf8 string: invalid utf8")
		}
		writeLengthPrefixed(buf, []byte(v.strVal))

	case KindTuple:
		if err := binary.Write(buf, binary.BigEndian, uint32(len(v.entries))); err != nil {
			return fmt.Errorf("encoding tuple length: %w", err)
		}
		for _, e := range v.entries {
			if len(e.Name) > 0xff {
				return fmt.Errorf("encoding tuple: field name too long: %s", e.Name)
			}
			buf.WriteByte(byte(len(e.Name)))
			buf.WriteString(e.Name)
			if err := e.Value.writeTo(buf); err != nil {
				return fmt.Errorf("encoding tuple field %s: %w", e.Name, err)
			}
		}

	default:
		return fmt.Errorf("%w: unknown kind 0x%02x", ErrorInvalidEncoding, byte(v.kind))
	}

	return nil
}

func writeLengthPrefixed(buf *bytes.Buffer, data []byte) {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	buf.Write(length)
	buf.Write(data)
}

// Decode parses a wire-form value. Trailing bytes are an error.
func Decode(data []byte) (Value, error) {
	r := bytes.NewReader(data)
	v, err := readValue(r)
	if err != nil {
		return Value{}, err
	}
	if r.Len() != 0 {
		return Value{}, fmt.Errorf("%w: %d trailing bytes", ErrorInvalidEncoding, r.Len())
	}
	return v, nil
}

func readValue(r *bytes.Reader) (Value, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return Value{}, fmt.Errorf("%w: truncated", ErrorInvalidEncoding)
	}

	switch Kind(kindByte) {
	case KindUint:
		raw := make([]byte, 16)
		if n, _ := r.Read(raw); n != len(raw) {
			return Value{}, fmt.Errorf("%w: truncated uint", ErrorInvalidEncoding)
		}
		for _, b := range raw[:8] {
			if b != 0 {
				return Value{}, fmt.Errorf("%w: uint overflows 64 bits", ErrorInvalidEncoding)
			}
		}
		return Uint(binary.BigEndian.Uint64(raw[8:])), nil

	case KindTrue:
		return Bool(true), nil
	case KindFalse:
		return Bool(false), nil
	case KindOptionalNone:
		return None(), nil

	case KindPrincipal:
		version, err := r.ReadByte()
		if err != nil {
			return Value{}, fmt.Errorf("%w: truncated principal", ErrorInvalidEncoding)
		}
		payload := make([]byte, principalPayloadSize)
		if n, _ := r.Read(payload); n != principalPayloadSize {
			return Value{}, fmt.Errorf("%w: truncated principal", ErrorInvalidEncoding)
		}
		p, err := principal.Parse(base58.CheckEncode(payload, version))
		if err != nil {
			return Value{}, fmt.Errorf("decoding principal: %w", err)
		}
		return Principal(p), nil

	case KindOptionalSome:
		inner, err := readValue(r)
		if err != nil {
			return Value{}, err
		}
		return Some(inner), nil
	case KindResponseOk:
		inner, err := readValue(r)
		if err != nil {
			return Value{}, err
		}
		return Ok(inner), nil
	case KindResponseErr:
		inner, err := readValue(r)
		if err != nil {
			return Value{}, err
		}
		return Err(inner), nil

	case KindStringASCII, KindStringUTF8:
		data, err := readLengthPrefixed(r)
		if err != nil {
			return Value{}, err
		}
		if Kind(kindByte) == KindStringASCII {
			for _, b := range data {
				if b > 0x7f {
					return Value{}, fmt.Errorf("%w: non-ascii byte 0x%02x in ascii string", ErrorInvalidEncoding, b)
				}
			}
			return StringASCII(string(data)), nil
		}
		if !utf8.Valid(data) {
			return Value{}, fmt.Errorf("%w: invalid utf8 string", ErrorInvalidEncoding)
		}
		return StringUTF8(string(data)), nil

	case KindTuple:
		lengthRaw := make([]byte, 4)
		if n, _ := r.Read(lengthRaw); n != 4 {
			return Value{}, fmt.Errorf("%w: truncated tuple", ErrorInvalidEncoding)
		}
		count := binary.BigEndian.Uint32(lengthRaw)
		// every field needs at least a name length byte and a kind byte
		if int64(count)*2 > int64(r.Len()) {
			return Value{}, fmt.Errorf("%w: declared tuple count %d exceeds remaining %d bytes", ErrorInvalidEncoding, count, r.Len())
		}
		entries := make([]TupleEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			nameLen, err := r.ReadByte()
			if err != nil {
				return Value{}, fmt.Errorf("%w: truncated tuple field", ErrorInvalidEncoding)
			}
			name := make([]byte, nameLen)
			if n, _ := r.Read(name); n != int(nameLen) {
				return Value{}, fmt.Errorf("%w: truncated tuple field name", ErrorInvalidEncoding)
			}
			value, err := readValue(r)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, TupleEntry{Name: string(name), Value: value})
		}
		return Tuple(entries...), nil
	}

	return Value{}, fmt.Errorf("%w: unknown kind 0x%02x", ErrorInvalidEncoding, kindByte)
}

func readLengthPrefixed(r *bytes.Reader) ([]byte, error) {
	lengthRaw := make([]byte, 4)
	if n, _ := r.Read(lengthRaw); n != 4 {
		return nil, fmt.Errorf("%w: truncated length", ErrorInvalidEncoding)
	}
	length := binary.BigEndian.Uint32(lengthRaw)
	if int(length) > r.Len() {
		return nil, fmt.Errorf("%w: declared length %d exceeds remaining %d", ErrorInvalidEncoding, length, r.Len())
	}
	data := make([]byte, length)
	if n, _ := r.Read(data); n != int(length) {
		return nil, fmt.Errorf("%w: truncated string", ErrorInvalidEncoding)
	}
	return data, nil
}
