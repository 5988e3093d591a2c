package engine

import (
	"encoding/binary"

	"github.com/neonotify/neonotify/types"
)

// Opcodes used by ScriptBuilder.
const (
	opPush0     byte = 0x00
	opPushData1 byte = 0x4c
	opPushData2 byte = 0x4d
	opPushData4 byte = 0x4e
	opAppCall   byte = 0x67
	opPack      byte = 0xc1

	maxDirectPush = 0x4b
)

// ScriptBuilder assembles invocation scripts.
type ScriptBuilder struct {
	buf []byte
}

// NewScriptBuilder returns an empty builder.
func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{}
}

// EmitPushBytes pushes data using the shortest push encoding.
func (sb *ScriptBuilder) EmitPushBytes(data []byte) *ScriptBuilder {
	n := len(data)
	switch {
	case n <= maxDirectPush:
		sb.buf = append(sb.buf, byte(n))
	case n < 0x100:
		sb.buf = append(sb.buf, opPushData1, byte(n))
	case n < 0x10000:
		sb.buf = append(sb.buf, opPushData2)
		sb.buf = binary.LittleEndian.AppendUint16(sb.buf, uint16(n))
	default:
		sb.buf = append(sb.buf, opPushData4)
		sb.buf = binary.LittleEndian.AppendUint32(sb.buf, uint32(n))
	}
	sb.buf = append(sb.buf, data...)
	return sb
}

// EmitAppCall calls operation on the contract at hash with no arguments.
func (sb *ScriptBuilder) EmitAppCall(hash types.UInt160, operation string) *ScriptBuilder {
	sb.buf = append(sb.buf, opPush0, opPack)
	sb.EmitPushBytes([]byte(operation))
	sb.buf = append(sb.buf, opAppCall)
	sb.buf = append(sb.buf, hash[:]...)
	return sb
}

// Bytes returns the assembled script.
func (sb *ScriptBuilder) Bytes() []byte {
	return append([]byte{}, sb.buf...)
}
