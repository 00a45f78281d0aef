package clarval

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

func testPrincipal(t *testing.T) principal.Principal {
	t.Helper()
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	p, err := principal.FromPublicKey(&privateKey.PublicKey, principal.NetworkTestnet)
	if err != nil {
		t.Fatalf("deriving principal: %v", err)
	}
	return p
}

func TestEncodeDecode(t *testing.T) {
	assert := assert.New(t)
	p := testPrincipal(t)

	values := []Value{
		Uint(0),
		Uint(281),
		Bool(true),
		Bool(false),
		None(),
		Some(Uint(42)),
		Ok(Bool(true)),
		Err(Uint(409)),
		StringASCII("alice"),
		StringUTF8("héllo, wörld ❤️"),
		Principal(p),
		Tuple(
			TupleEntry{Name: "username", Value: StringASCII("alice")},
			TupleEntry{Name: "display-name", Value: StringUTF8("Alice")},
			TupleEntry{Name: "created-at", Value: Uint(1700000000)},
			TupleEntry{Name: "owner", Value: Principal(p)},
		),
	}

	for _, v := range values {
		t.Run(v.String(), func(t *testing.T) {
			raw, err := v.Encode()
			assert.Nil(err)
			decoded, err := Decode(raw)
			assert.Nil(err)
			assert.Equal(v.String(), decoded.String())
		})
	}
}

func TestHexRoundTrip(t *testing.T) {
	assert := assert.New(t)

	v := Some(Tuple(TupleEntry{Name: "count", Value: Uint(7)}))
	encoded, err := EncodeHex(v)
	assert.Nil(err)
	assert.Contains(encoded, "0x")

	decoded, err := DecodeHex(encoded)
	assert.Nil(err)
	assert.Equal(v.String(), decoded.String())

	// prefix is optional on the way in
	decoded2, err := DecodeHex(encoded[2:])
	assert.Nil(err)
	assert.Equal(v.String(), decoded2.String())
}

func TestDecodeErrors(t *testing.T) {
	assert := assert.New(t)

	t.Run("empty input", func(t *testing.T) {
		_, err := Decode(nil)
		assert.ErrorIs(err, ErrorInvalidEncoding)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := Decode([]byte{0x7f})
		assert.ErrorIs(err, ErrorInvalidEncoding)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		raw, err := Bool(true).Encode()
		assert.Nil(err)
		_, err = Decode(append(raw, 0x00))
		assert.ErrorIs(err, ErrorInvalidEncoding)
	})

	t.Run("truncated string", func(t *testing.T) {
		raw, err := StringUTF8("hello").Encode()
		assert.Nil(err)
		_, err = Decode(raw[:len(raw)-2])
		assert.ErrorIs(err, ErrorInvalidEncoding)
	})

	t.Run("uint beyond 64 bits", func(t *testing.T) {
		raw := make([]byte, 17)
		raw[0] = byte(KindUint)
		raw[1] = 0x01
		_, err := Decode(raw)
		assert.ErrorIs(err, ErrorInvalidEncoding)
	})

	t.Run("tuple count exceeding input fails before allocating", func(t *testing.T) {
		// a 5-byte input claiming 16M fields must be rejected on the
		// declared count, not while walking (and allocating for) fields
		_, err := Decode([]byte{byte(KindTuple), 0x00, 0xff, 0xff, 0xff})
		assert.ErrorIs(err, ErrorInvalidEncoding)

		_, err = Decode([]byte{byte(KindTuple), 0xff, 0xff, 0xff, 0xff})
		assert.ErrorIs(err, ErrorInvalidEncoding)
	})

	t.Run("non-ascii bytes rejected in ascii string", func(t *testing.T) {
		raw := []byte{byte(KindStringASCII), 0x00, 0x00, 0x00, 0x02, 'a', 0xc3}
		_, err := Decode(raw)
		assert.ErrorIs(err, ErrorInvalidEncoding)
	})
}

func TestAccessors(t *testing.T) {
	assert := assert.New(t)
	p := testPrincipal(t)

	tuple := Tuple(
		TupleEntry{Name: "owner", Value: Principal(p)},
		TupleEntry{Name: "count", Value: Uint(3)},
	)

	owner, err := tuple.Field("owner")
	assert.Nil(err)
	gotPrincipal, err := owner.AsPrincipal()
	assert.Nil(err)
	assert.Equal(p, gotPrincipal)

	count, err := tuple.Field("count")
	assert.Nil(err)
	gotCount, err := count.AsUint()
	assert.Nil(err)
	assert.Equal(uint64(3), gotCount)

	_, err = tuple.Field("missing")
	assert.ErrorIs(err, ErrorInvalidEncoding)

	_, err = Uint(1).AsBool()
	assert.ErrorIs(err, ErrorWrongKind)

	inner, err := Some(Uint(9)).Unwrap()
	assert.Nil(err)
	got, err := inner.AsUint()
	assert.Nil(err)
	assert.Equal(uint64(9), got)

	_, err = Err(Uint(401)).Unwrap()
	assert.NotNil(err)
}
