package indexer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/orderedcode"

	"github.com/neonotify/neonotify/types"
)

// Kind is the first byte of every key and selects the partition of the
// keyspace the key belongs to.
type Kind byte

const (
	KindAddress      Kind = 0x01
	KindContract     Kind = 0x02
	KindBlock        Kind = 0x03
	KindCounter      Kind = 0x04
	KindContractSeen Kind = 0x05
	KindToken        Kind = 0x06
	KindTransaction  Kind = 0x07
	KindMeta         Kind = 0x08
)

func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindContract:
		return "contract"
	case KindBlock:
		return "block"
	case KindCounter:
		return "counter"
	case KindContractSeen:
		return "contract_seen"
	case KindToken:
		return "token"
	case KindTransaction:
		return "transaction"
	case KindMeta:
		return "meta"
	default:
		return fmt.Sprintf("kind(0x%02x)", byte(k))
	}
}

// sequenceSize is the width of the trailing big endian sequence number.
const sequenceSize = 4

// ErrKeyTooShort is returned when a key cannot hold a kind byte and a
// sequence number.
var ErrKeyTooShort = errors.New("key too short")

// EncodeKey builds kind || bucketID || uint32_be(seq). Since the sequence is
// fixed width and big endian, iterating a bucket prefix yields records in
// sequence order.
func EncodeKey(kind Kind, bucketID []byte, seq uint32) []byte {
	key := make([]byte, 0, 1+len(bucketID)+sequenceSize)
	key = append(key, byte(kind))
	key = append(key, bucketID...)
	return binary.BigEndian.AppendUint32(key, seq)
}

// BucketPrefix returns the prefix shared by every record of one bucket.
func BucketPrefix(kind Kind, bucketID []byte) []byte {
	key := make([]byte, 0, 1+len(bucketID))
	key = append(key, byte(kind))
	return append(key, bucketID...)
}

// DecodeSequence extracts the sequence number from a record key.
func DecodeSequence(key []byte) (uint32, error) {
	if len(key) < 1+sequenceSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrKeyTooShort, len(key))
	}
	return binary.BigEndian.Uint32(key[len(key)-sequenceSize:]), nil
}

// CounterKey returns the ledger key holding the counter of one bucket. The
// index kind is part of the key so an address and a contract sharing the
// same 20 bytes keep separate counters.
func CounterKey(kind Kind, bucketID []byte) []byte {
	key, err := orderedcode.Append([]byte{byte(KindCounter)}, uint64(kind), string(bucketID))
	if err != nil {
		panic(err)
	}
	return key
}

// MetaKey returns the key of a named metadata value.
func MetaKey(name string) []byte {
	key, err := orderedcode.Append([]byte{byte(KindMeta)}, name)
	if err != nil {
		panic(err)
	}
	return key
}

// Bucket ids. Within one kind every id has the same width, so no bucket
// prefix is a prefix of another.

func AddressBucket(hash types.UInt160) []byte { return hash.Bytes() }

func ContractBucket(hash types.UInt160) []byte { return hash.Bytes() }

func BlockBucket(height uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, height)
}

func TransactionBucket(hash types.UInt256) []byte { return hash.Bytes() }
