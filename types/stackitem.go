package types

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

// StackItemType identifies the concrete kind of a StackItem.
type StackItemType byte

const (
	ByteArrayType StackItemType = iota
	IntegerType
	BooleanType
	ArrayType
	StructType
	MapType
	InteropInterfaceType
)

func (t StackItemType) String() string {
	switch t {
	case ByteArrayType:
		return "ByteArray"
	case IntegerType:
		return "Integer"
	case BooleanType:
		return "Boolean"
	case ArrayType:
		return "Array"
	case StructType:
		return "Struct"
	case MapType:
		return "Map"
	case InteropInterfaceType:
		return "InteropInterface"
	default:
		return fmt.Sprintf("StackItemType(%d)", byte(t))
	}
}

// ErrNotConvertible is returned when a stack item has no byte form, e.g. an
// array asked for its bytes.
var ErrNotConvertible = errors.New("stack item is not convertible")

// StackItem is a value produced by the virtual machine, most notably the
// state payload of a notification.
type StackItem interface {
	Type() StackItemType
	// Bytes returns the byte form of a primitive item.
	Bytes() ([]byte, error)
	// BigInt interprets the byte form as a little endian two's complement
	// integer.
	BigInt() (*big.Int, error)
}

// ItemString decodes the byte form of item as UTF-8.
func ItemString(item StackItem) (string, error) {
	b, err := item.Bytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrNotConvertible, item.Type())
	}
	return string(b), nil
}

// ItemArray returns the elements of an Array or Struct.
func ItemArray(item StackItem) ([]StackItem, bool) {
	switch v := item.(type) {
	case Array:
		return v, true
	case Struct:
		return v, true
	}
	return nil, false
}

type ByteArray []byte

func (ByteArray) Type() StackItemType         { return ByteArrayType }
func (b ByteArray) Bytes() ([]byte, error)    { return []byte(b), nil }
func (b ByteArray) BigInt() (*big.Int, error) { return BigIntFromBytes(b), nil }

type Integer struct{ Value *big.Int }

// NewInteger wraps an int64.
func NewInteger(v int64) Integer { return Integer{Value: big.NewInt(v)} }

func (Integer) Type() StackItemType { return IntegerType }

func (i Integer) Bytes() ([]byte, error) { return BigIntToBytes(i.value()), nil }

func (i Integer) BigInt() (*big.Int, error) { return new(big.Int).Set(i.value()), nil }

func (i Integer) value() *big.Int {
	if i.Value == nil {
		return new(big.Int)
	}
	return i.Value
}

type Boolean bool

func (Boolean) Type() StackItemType { return BooleanType }

func (b Boolean) Bytes() ([]byte, error) {
	if b {
		return []byte{1}, nil
	}
	return []byte{}, nil
}

func (b Boolean) BigInt() (*big.Int, error) {
	if b {
		return big.NewInt(1), nil
	}
	return new(big.Int), nil
}

type Array []StackItem

func (Array) Type() StackItemType { return ArrayType }

func (Array) Bytes() ([]byte, error) { return nil, fmt.Errorf("%w: Array", ErrNotConvertible) }

func (Array) BigInt() (*big.Int, error) { return nil, fmt.Errorf("%w: Array", ErrNotConvertible) }

type Struct []StackItem

func (Struct) Type() StackItemType { return StructType }

func (Struct) Bytes() ([]byte, error) { return nil, fmt.Errorf("%w: Struct", ErrNotConvertible) }

func (Struct) BigInt() (*big.Int, error) { return nil, fmt.Errorf("%w: Struct", ErrNotConvertible) }

// MapEntry is one key/value pair of a Map, kept in insertion order.
type MapEntry struct {
	Key   StackItem
	Value StackItem
}

type Map []MapEntry

func (Map) Type() StackItemType { return MapType }

func (Map) Bytes() ([]byte, error) { return nil, fmt.Errorf("%w: Map", ErrNotConvertible) }

func (Map) BigInt() (*big.Int, error) { return nil, fmt.Errorf("%w: Map", ErrNotConvertible) }

// InteropInterface is an opaque host object. Only its presence is recorded.
type InteropInterface struct{}

func (InteropInterface) Type() StackItemType { return InteropInterfaceType }

func (InteropInterface) Bytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: InteropInterface", ErrNotConvertible)
}

func (InteropInterface) BigInt() (*big.Int, error) {
	return nil, fmt.Errorf("%w: InteropInterface", ErrNotConvertible)
}

// BigIntFromBytes decodes a little endian two's complement integer. An empty
// slice is zero.
func BigIntFromBytes(b []byte) *big.Int {
	if len(b) == 0 {
		return new(big.Int)
	}
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	n := new(big.Int).SetBytes(be)
	if b[len(b)-1]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return n
}

// BigIntToBytes encodes n as a minimal little endian two's complement
// integer. Zero encodes as an empty slice.
func BigIntToBytes(n *big.Int) []byte {
	switch n.Sign() {
	case 0:
		return []byte{}
	case 1:
		be := n.Bytes()
		if be[0]&0x80 != 0 {
			be = append([]byte{0}, be...)
		}
		return reverse(be)
	}
	// Negative: width is the smallest byte count whose sign bit is set.
	m := new(big.Int).Neg(n)
	m.Sub(m, big.NewInt(1))
	width := m.BitLen()/8 + 1
	v := new(big.Int).Lsh(big.NewInt(1), uint(width*8))
	v.Add(v, n)
	be := v.Bytes()
	for len(be) < width {
		be = append([]byte{0}, be...)
	}
	return reverse(be)
}

func reverse(b []byte) []byte {
	r := make([]byte, len(b))
	for i := range b {
		r[len(b)-1-i] = b[i]
	}
	return r
}
