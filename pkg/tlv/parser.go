// Package tlv maps BER-TLV encoded card files onto Go structs using
// `tlv:"<tag>"` struct tags.
package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Unmarshaler lets a field type decode its own value bytes.
type Unmarshaler interface {
	UnmarshalTLV(data []byte) error
}

var unknownType = reflect.TypeOf([]bertlv.TLV{})

// Unmarshal decodes data and fills the tagged fields of target.
//
// Supported field kinds are []byte (raw value), string (uppercase hex of
// the value), nested structs (constructed TLVs) and any type implementing
// Unmarshaler. A []bertlv.TLV field named Unknown, or tagged ",unknown",
// collects the objects no field claimed.
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets is Unmarshal over already decoded objects.
func UnmarshalFromPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct, got %T", target)
	}
	v = v.Elem()
	t := v.Type()

	claimed := make([]bool, len(packets))
	var unknown reflect.Value

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("tlv")

		if sf.Type == unknownType && (tag == ",unknown" || (tag == "" && sf.Name == "Unknown")) {
			unknown = v.Field(i)
			continue
		}
		if tag == "" {
			continue
		}

		want := strings.ToUpper(strings.Split(tag, ",")[0])
		for idx, p := range packets {
			if claimed[idx] || strings.ToUpper(p.Tag) != want {
				continue
			}
			if err := assign(p, v.Field(i)); err != nil {
				return fmt.Errorf("tag %s (%s): %w", want, sf.Name, err)
			}
			claimed[idx] = true
			if !isRepeatable(v.Field(i)) {
				break
			}
		}
	}

	if unknown.IsValid() {
		for idx, p := range packets {
			if !claimed[idx] {
				unknown.Set(reflect.Append(unknown, reflect.ValueOf(p)))
			}
		}
	}
	return nil
}

// isRepeatable reports whether the field accepts several occurrences of its tag.
func isRepeatable(field reflect.Value) bool {
	return field.Kind() == reflect.Slice && !isByteSlice(field)
}

func assign(p bertlv.TLV, field reflect.Value) error {
	if isRepeatable(field) {
		elem := reflect.New(field.Type().Elem()).Elem()
		if err := decodeValue(p, elem); err != nil {
			return err
		}
		field.Set(reflect.Append(field, elem))
		return nil
	}
	return decodeValue(p, field)
}

func decodeValue(p bertlv.TLV, field reflect.Value) error {
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalTLV(rawValue(p))
		}
	}

	switch {
	case isByteSlice(field):
		field.SetBytes(rawValue(p))
	case field.Kind() == reflect.String:
		field.SetString(strings.ToUpper(hex.EncodeToString(rawValue(p))))
	case field.Kind() == reflect.Struct:
		if len(p.TLVs) > 0 {
			return UnmarshalFromPackets(p.TLVs, field.Addr().Interface())
		}
		return Unmarshal(p.Value, field.Addr().Interface())
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		if len(p.TLVs) > 0 {
			return UnmarshalFromPackets(p.TLVs, field.Interface())
		}
		return Unmarshal(p.Value, field.Interface())
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// rawValue returns the value bytes of p, re-encoding children of a
// constructed object since bertlv leaves Value empty for those.
func rawValue(p bertlv.TLV) []byte {
	if len(p.TLVs) == 0 {
		return p.Value
	}
	b, err := bertlv.Encode(p.TLVs)
	if err != nil {
		return p.Value
	}
	return b
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}
