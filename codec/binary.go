// Package codec implements the two wire formats platform messages are
// exchanged in: a tagged-value binary codec and a minimally-escaped JSON
// codec. Both are byte-exact with the upstream UI-toolkit platform
// channel formats (see original_source/include/platformchannel.h's
// std_value_type enum).
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Value is any decoded binary-codec value: nil, bool, int32, int64,
// float64, string, []byte, []int32, []int64, []float64, []float32,
// []Value, or map[Value]Value.
type Value = any

// type tags, matching std_value_type exactly.
const (
	tagNull = iota
	tagTrue
	tagFalse
	tagInt32
	tagInt64
	tagLargeInt // legacy, decoded as a string
	tagFloat64
	tagString
	tagUint8Array
	tagInt32Array
	tagInt64Array
	tagFloat64Array
	tagList
	tagMap
	tagFloat32Array
)

var errMalformed = errors.New("codec: malformed binary message")

// Binary implements the tagged-value binary codec.
type Binary struct{}

// Encode serializes v into the tagged-value wire format.
func (Binary) Encode(v Value) ([]byte, error) {
	e := &encoder{buf: make([]byte, 0, 64)}
	if err := e.writeValue(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Decode parses a tagged-value message, returning an error if any
// trailing bytes remain or the message is truncated.
func (Binary) Decode(b []byte) (Value, error) {
	d := &decoder{buf: b}
	v, err := d.readValue()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.buf) {
		return nil, fmt.Errorf("%w: trailing data", errMalformed)
	}
	return v, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) writeByte(b byte) { e.buf = append(e.buf, b) }

func (e *encoder) align(multiple int) {
	for len(e.buf)%multiple != 0 {
		e.writeByte(0)
	}
}

// writeSize encodes a length using the 1/3/5-byte rule: <=253 as one
// byte, <=65535 as marker 254 + 2 bytes, else marker 255 + 4 bytes.
func (e *encoder) writeSize(n int) {
	switch {
	case n <= 253:
		e.writeByte(byte(n))
	case n <= 65535:
		e.writeByte(254)
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(n))
	default:
		e.writeByte(255)
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(n))
	}
}

func (e *encoder) writeValue(v Value) error {
	switch x := v.(type) {
	case nil:
		e.writeByte(tagNull)
	case bool:
		if x {
			e.writeByte(tagTrue)
		} else {
			e.writeByte(tagFalse)
		}
	case int32:
		e.writeByte(tagInt32)
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(x))
	case int:
		return e.writeValue(int64(x))
	case int64:
		e.writeByte(tagInt64)
		e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(x))
	case float64:
		e.writeByte(tagFloat64)
		e.align(8)
		e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(x))
	case string:
		e.writeByte(tagString)
		e.writeSize(len(x))
		e.buf = append(e.buf, x...)
	case []byte:
		e.writeByte(tagUint8Array)
		e.writeSize(len(x))
		e.buf = append(e.buf, x...)
	case []int32:
		e.writeByte(tagInt32Array)
		e.writeSize(len(x))
		e.align(4)
		for _, n := range x {
			e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(n))
		}
	case []int64:
		e.writeByte(tagInt64Array)
		e.writeSize(len(x))
		e.align(8)
		for _, n := range x {
			e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(n))
		}
	case []float64:
		e.writeByte(tagFloat64Array)
		e.writeSize(len(x))
		e.align(8)
		for _, f := range x {
			e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(f))
		}
	case []float32:
		e.writeByte(tagFloat32Array)
		e.writeSize(len(x))
		e.align(4)
		for _, f := range x {
			e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(f))
		}
	case []Value:
		e.writeByte(tagList)
		e.writeSize(len(x))
		for _, item := range x {
			if err := e.writeValue(item); err != nil {
				return err
			}
		}
	case map[Value]Value:
		e.writeByte(tagMap)
		e.writeSize(len(x))
		for k, val := range x {
			if err := e.writeValue(k); err != nil {
				return err
			}
			if err := e.writeValue(val); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("codec: unsupported binary value type %T", v)
	}
	return nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, errMalformed
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return errMalformed
	}
	return nil
}

func (d *decoder) align(multiple int) {
	for d.pos%multiple != 0 {
		d.pos++
	}
}

func (d *decoder) readSize() (int, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b < 254:
		return int(b), nil
	case b == 254:
		if err := d.need(2); err != nil {
			return 0, err
		}
		n := binary.LittleEndian.Uint16(d.buf[d.pos:])
		d.pos += 2
		return int(n), nil
	default:
		if err := d.need(4); err != nil {
			return 0, err
		}
		n := binary.LittleEndian.Uint32(d.buf[d.pos:])
		d.pos += 4
		return int(n), nil
	}
}

func (d *decoder) readValue() (Value, error) {
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNull:
		return nil, nil
	case tagTrue:
		return true, nil
	case tagFalse:
		return false, nil
	case tagInt32:
		if err := d.need(4); err != nil {
			return nil, err
		}
		v := int32(binary.LittleEndian.Uint32(d.buf[d.pos:]))
		d.pos += 4
		return v, nil
	case tagInt64:
		if err := d.need(8); err != nil {
			return nil, err
		}
		v := int64(binary.LittleEndian.Uint64(d.buf[d.pos:]))
		d.pos += 8
		return v, nil
	case tagLargeInt, tagString:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		if err := d.need(n); err != nil {
			return nil, err
		}
		s := string(d.buf[d.pos : d.pos+n])
		d.pos += n
		return s, nil
	case tagFloat64:
		d.align(8)
		if err := d.need(8); err != nil {
			return nil, err
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(d.buf[d.pos:]))
		d.pos += 8
		return v, nil
	case tagUint8Array:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		if err := d.need(n); err != nil {
			return nil, err
		}
		v := append([]byte(nil), d.buf[d.pos:d.pos+n]...)
		d.pos += n
		return v, nil
	case tagInt32Array:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		d.align(4)
		if err := d.need(n * 4); err != nil {
			return nil, err
		}
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(d.buf[d.pos:]))
			d.pos += 4
		}
		return out, nil
	case tagInt64Array:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		d.align(8)
		if err := d.need(n * 8); err != nil {
			return nil, err
		}
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(d.buf[d.pos:]))
			d.pos += 8
		}
		return out, nil
	case tagFloat64Array:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		d.align(8)
		if err := d.need(n * 8); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(d.buf[d.pos:]))
			d.pos += 8
		}
		return out, nil
	case tagFloat32Array:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		d.align(4)
		if err := d.need(n * 4); err != nil {
			return nil, err
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(d.buf[d.pos:]))
			d.pos += 4
		}
		return out, nil
	case tagList:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		out := make([]Value, n)
		for i := range out {
			out[i], err = d.readValue()
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case tagMap:
		n, err := d.readSize()
		if err != nil {
			return nil, err
		}
		out := make(map[Value]Value, n)
		for i := 0; i < n; i++ {
			k, err := d.readValue()
			if err != nil {
				return nil, err
			}
			v, err := d.readValue()
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", errMalformed, tag)
	}
}
