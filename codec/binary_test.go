package codec_test

import (
	"reflect"
	"testing"

	"github.com/pixeldrift/compositor/codec"
)

func roundtrip(t *testing.T, v codec.Value) codec.Value {
	t.Helper()
	c := codec.Binary{}
	b, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode(%v): %v", v, err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestBinaryScalars(t *testing.T) {
	cases := []codec.Value{
		nil, true, false, int32(42), int64(1 << 40), 3.5, "hello",
	}
	for _, v := range cases {
		have := roundtrip(t, v)
		if !reflect.DeepEqual(have, v) {
			t.Errorf("roundtrip(%v) = %v (%T), want %v (%T)", v, have, have, v, v)
		}
	}
}

func TestBinaryArrays(t *testing.T) {
	have := roundtrip(t, []int32{1, 2, 3})
	if !reflect.DeepEqual(have, []int32{1, 2, 3}) {
		t.Errorf("int32 array roundtrip = %v", have)
	}
	have = roundtrip(t, []float64{1.5, -2.25})
	if !reflect.DeepEqual(have, []float64{1.5, -2.25}) {
		t.Errorf("float64 array roundtrip = %v", have)
	}
	have = roundtrip(t, []byte{0xff, 0x00, 0x7f})
	if !reflect.DeepEqual(have, []byte{0xff, 0x00, 0x7f}) {
		t.Errorf("byte array roundtrip = %v", have)
	}
}

func TestBinaryListAndMap(t *testing.T) {
	list := []codec.Value{int32(1), "two", 3.0, nil}
	have := roundtrip(t, list)
	if !reflect.DeepEqual(have, list) {
		t.Errorf("list roundtrip = %v, want %v", have, list)
	}

	m := map[codec.Value]codec.Value{"a": int32(1), "b": true}
	have = roundtrip(t, m)
	if !reflect.DeepEqual(have, m) {
		t.Errorf("map roundtrip = %v, want %v", have, m)
	}
}

func TestBinaryLengthPrefixBoundaries(t *testing.T) {
	cases := []int{0, 253, 254, 255, 65535, 65536, 70000}
	for _, n := range cases {
		s := make([]byte, n)
		have := roundtrip(t, s)
		got, ok := have.([]byte)
		if !ok || len(got) != n {
			t.Errorf("length %d: roundtrip produced %T len %d", n, have, len(got))
		}
	}
}

func TestBinaryAlignment(t *testing.T) {
	// Forces an odd offset before the float64 so alignment padding must
	// be inserted for the decoder to land on the right byte.
	list := []codec.Value{"x", 3.14159}
	have := roundtrip(t, list)
	want := []codec.Value{"x", 3.14159}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("alignment roundtrip = %v, want %v", have, want)
	}
}

func TestBinaryDecodeMalformed(t *testing.T) {
	c := codec.Binary{}
	if _, err := c.Decode([]byte{0xab}); err == nil {
		t.Error("Decode: expected error for unknown tag")
	}
	if _, err := c.Decode(nil); err == nil {
		t.Error("Decode: expected error for empty input")
	}
}

func TestBinaryDecodeTrailingData(t *testing.T) {
	c := codec.Binary{}
	b, _ := c.Encode(int32(1))
	b = append(b, 0xff)
	if _, err := c.Decode(b); err == nil {
		t.Error("Decode: expected error for trailing data")
	}
}
