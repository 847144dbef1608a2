// Package oplog records and replays sequences of map operations.
//
// A log starts with a fixed magic header followed by one record per
// operation: a kind byte, the key as a uvarint and, for inserts, the value
// as a uvarint. The whole stream may be wrapped in an LZ4 frame.
package oplog

import (
	"errors"
	"fmt"
)

// Magic opens every operation log.
const Magic = "ORDMAPv1"

// Kind is the type of a recorded operation.
type Kind uint8

// Recorded operation kinds.
const (
	KindInsert Kind = iota + 1
	KindDelete
	KindFind
)

var kindNames = map[Kind]string{
	KindInsert: "insert",
	KindDelete: "delete",
	KindFind:   "find",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]

	return ok
}

// Op is one recorded operation. Value is only meaningful for inserts.
type Op struct {
	Kind  Kind
	Key   uint32
	Value uint32
}

func (op Op) String() string {
	if op.Kind == KindInsert {
		return fmt.Sprintf("%s %d=%d", op.Kind, op.Key, op.Value)
	}

	return fmt.Sprintf("%s %d", op.Kind, op.Key)
}

// Sentinel errors.
var (
	ErrBadMagic    = errors.New("not an operation log")
	ErrUnknownKind = errors.New("unknown operation kind")
	ErrCorrupt     = errors.New("corrupt operation record")
)
