package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
)

// Contract parameter type names as they appear on the wire.
const (
	ParamSignature        = "Signature"
	ParamBoolean          = "Boolean"
	ParamInteger          = "Integer"
	ParamHash160          = "Hash160"
	ParamHash256          = "Hash256"
	ParamByteArray        = "ByteArray"
	ParamPublicKey        = "PublicKey"
	ParamString           = "String"
	ParamArray            = "Array"
	ParamMap              = "Map"
	ParamInteropInterface = "InteropInterface"
	ParamVoid             = "Void"
)

// ContractParameter is the typed JSON rendering of a stack item, used by
// the node's application log and by the generic notification state field.
type ContractParameter struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

type contractParameterPair struct {
	Key   ContractParameter `json:"key"`
	Value ContractParameter `json:"value"`
}

// ParameterFromStackItem converts a stack item to its ContractParameter form.
func ParameterFromStackItem(item StackItem) ContractParameter {
	switch v := item.(type) {
	case ByteArray:
		return ContractParameter{Type: ParamByteArray, Value: rawJSON(hex.EncodeToString(v))}
	case Integer:
		return ContractParameter{Type: ParamInteger, Value: rawJSON(v.value().String())}
	case Boolean:
		return ContractParameter{Type: ParamBoolean, Value: rawJSON(bool(v))}
	case Array:
		return ContractParameter{Type: ParamArray, Value: rawJSON(parametersFromItems(v))}
	case Struct:
		return ContractParameter{Type: ParamArray, Value: rawJSON(parametersFromItems(v))}
	case Map:
		pairs := make([]contractParameterPair, 0, len(v))
		for _, e := range v {
			pairs = append(pairs, contractParameterPair{
				Key:   ParameterFromStackItem(e.Key),
				Value: ParameterFromStackItem(e.Value),
			})
		}
		return ContractParameter{Type: ParamMap, Value: rawJSON(pairs)}
	default:
		return ContractParameter{Type: ParamInteropInterface}
	}
}

func parametersFromItems(items []StackItem) []ContractParameter {
	params := make([]ContractParameter, 0, len(items))
	for _, it := range items {
		params = append(params, ParameterFromStackItem(it))
	}
	return params
}

// StackItem converts the parameter back into a stack item.
func (p ContractParameter) StackItem() (StackItem, error) {
	switch p.Type {
	case ParamByteArray, ParamSignature, ParamPublicKey:
		var s string
		if err := p.decodeValue(&s); err != nil {
			return nil, err
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%s parameter: %w", p.Type, err)
		}
		return ByteArray(b), nil
	case ParamString:
		var s string
		if err := p.decodeValue(&s); err != nil {
			return nil, err
		}
		return ByteArray(s), nil
	case ParamHash160:
		var s string
		if err := p.decodeValue(&s); err != nil {
			return nil, err
		}
		h, err := ParseUInt160(s)
		if err != nil {
			return nil, err
		}
		return ByteArray(h.Bytes()), nil
	case ParamHash256:
		var s string
		if err := p.decodeValue(&s); err != nil {
			return nil, err
		}
		h, err := ParseUInt256(s)
		if err != nil {
			return nil, err
		}
		return ByteArray(h.Bytes()), nil
	case ParamInteger:
		var s string
		if err := p.decodeValue(&s); err != nil {
			return nil, err
		}
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("integer parameter: malformed value %q", s)
		}
		return Integer{Value: n}, nil
	case ParamBoolean:
		var b bool
		if err := p.decodeValue(&b); err != nil {
			return nil, err
		}
		return Boolean(b), nil
	case ParamArray:
		var params []ContractParameter
		if err := p.decodeValue(&params); err != nil {
			return nil, err
		}
		items := make(Array, 0, len(params))
		for i, sub := range params {
			it, err := sub.StackItem()
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			items = append(items, it)
		}
		return items, nil
	case ParamMap:
		var pairs []contractParameterPair
		if err := p.decodeValue(&pairs); err != nil {
			return nil, err
		}
		m := make(Map, 0, len(pairs))
		for i, pair := range pairs {
			k, err := pair.Key.StackItem()
			if err != nil {
				return nil, fmt.Errorf("map key %d: %w", i, err)
			}
			v, err := pair.Value.StackItem()
			if err != nil {
				return nil, fmt.Errorf("map value %d: %w", i, err)
			}
			m = append(m, MapEntry{Key: k, Value: v})
		}
		return m, nil
	case ParamVoid:
		return ByteArray{}, nil
	case ParamInteropInterface:
		return InteropInterface{}, nil
	default:
		return nil, fmt.Errorf("unknown contract parameter type %q", p.Type)
	}
}

func (p ContractParameter) decodeValue(v interface{}) error {
	if len(p.Value) == 0 {
		return fmt.Errorf("%s parameter: missing value", p.Type)
	}
	if err := json.Unmarshal(p.Value, v); err != nil {
		return fmt.Errorf("%s parameter: %w", p.Type, err)
	}
	return nil
}

// rawJSON marshals values that are known to be encodable.
func rawJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("types: marshal %T: %v", v, err))
	}
	return b
}
