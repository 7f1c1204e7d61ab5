package codec_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pixeldrift/compositor/codec"
)

func TestJSONRoundtrip(t *testing.T) {
	c := codec.JSON{}
	v := map[codec.Value]codec.Value{
		"name":  "view",
		"count": 3.0,
		"tags":  []codec.Value{"a", "b"},
		"ok":    true,
		"none":  nil,
	}
	b, err := c.Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	have, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(have, v) {
		t.Errorf("roundtrip = %v, want %v", have, v)
	}
}

func TestJSONMinimalEscaping(t *testing.T) {
	c := codec.JSON{}
	b, err := c.Encode("<a href=\"x\">&1</a>\n\t")
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, `<`) || !strings.Contains(s, `&`) {
		t.Errorf("Encode: HTML characters were escaped, want minimal escaping only: %s", s)
	}
	if !strings.Contains(s, `\n`) || !strings.Contains(s, `\t`) {
		t.Errorf("Encode: control characters were not escaped: %s", s)
	}
}

func TestJSONNoTrailingNewline(t *testing.T) {
	c := codec.JSON{}
	b, err := c.Encode(int32(1))
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasSuffix(string(b), "\n") {
		t.Error("Encode: wire format should not include a trailing newline")
	}
}
