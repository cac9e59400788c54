// Package protofield walks protobuf wire data without generated message types. Steam and
// the Dota GC publish .proto files we only need a handful of fields from.
package protofield

import (
	"github.com/rotisserie/eris"
	"google.golang.org/protobuf/encoding/protowire"
)

type Field struct {
	Number protowire.Number
	Type   protowire.Type
	// Varint holds the value of varint, fixed32 and fixed64 fields.
	Varint uint64
	// Bytes holds the payload of length-delimited fields.
	Bytes []byte
}

func (f Field) Int32() int32 {
	return int32(f.Varint)
}

func (f Field) Uint32() uint32 {
	return uint32(f.Varint)
}

func (f Field) Bool() bool {
	return protowire.DecodeBool(f.Varint)
}

// Range calls fn for every field in b in wire order. Groups are rejected.
func Range(b []byte, fn func(Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return eris.Wrap(protowire.ParseError(n), "bad field tag")
		}
		b = b[n:]

		field := Field{Number: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			field.Varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			field.Varint = uint64(v)
		case protowire.Fixed64Type:
			field.Varint, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			field.Bytes, n = protowire.ConsumeBytes(b)
		default:
			return eris.Errorf("field %d has unsupported wire type %d", num, typ)
		}
		if n < 0 {
			return eris.Wrapf(protowire.ParseError(n), "bad value for field %d", num)
		}
		b = b[n:]

		if err := fn(field); err != nil {
			return err
		}
	}
	return nil
}

// Expect fails when a known field arrives with a wire type other than want.
func Expect(field Field, want protowire.Type) error {
	if field.Type != want {
		return eris.Errorf("field %d has wire type %d, expected %d", field.Number, field.Type, want)
	}
	return nil
}

func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	return AppendVarint(b, num, protowire.EncodeBool(v))
}

func AppendFixed64(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, v)
}

func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func AppendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}
