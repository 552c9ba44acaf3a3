// Package appmessage encodes and decodes the key/value dictionaries
// exchanged between the watch and its companion.
//
// Layout, all integers little-endian:
//
//	count  u8
//	count * { key u32, type u8, length u16, value [length]byte }
package appmessage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/samirrijal/molbubble/internal/core/domain"
)

var (
	ErrTruncated   = errors.New("appmessage: truncated dictionary")
	ErrUnknownType = errors.New("appmessage: unknown tuple type")
	ErrTooLarge    = errors.New("appmessage: dictionary too large")
	ErrTrailing    = errors.New("appmessage: trailing bytes")
)

const (
	headerSize = 1
	tupleHead  = 4 + 1 + 2
)

// Encode serialises a message. An empty message encodes to a single zero
// byte, which is what the refresh request looks like on the wire.
func Encode(msg domain.Message) ([]byte, error) {
	if len(msg) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d tuples", ErrTooLarge, len(msg))
	}

	size := headerSize
	for _, t := range msg {
		if len(t.Data) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: key %d carries %d bytes", ErrTooLarge, t.Key, len(t.Data))
		}
		if t.Type > domain.TupleInt {
			return nil, fmt.Errorf("%w: %d", ErrUnknownType, t.Type)
		}
		size += tupleHead + len(t.Data)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, byte(len(msg)))
	for _, t := range msg {
		buf = binary.LittleEndian.AppendUint32(buf, t.Key)
		buf = append(buf, byte(t.Type))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.Data)))
		buf = append(buf, t.Data...)
	}
	return buf, nil
}

// Decode parses a serialised message. Tuple values alias data.
func Decode(data []byte) (domain.Message, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	count := int(data[0])
	rest := data[headerSize:]

	msg := make(domain.Message, 0, count)
	for i := 0; i < count; i++ {
		if len(rest) < tupleHead {
			return nil, fmt.Errorf("%w: tuple %d header", ErrTruncated, i)
		}
		key := binary.LittleEndian.Uint32(rest[0:4])
		typ := domain.TupleType(rest[4])
		n := int(binary.LittleEndian.Uint16(rest[5:7]))
		rest = rest[tupleHead:]

		if typ > domain.TupleInt {
			return nil, fmt.Errorf("%w: %d on key %d", ErrUnknownType, typ, key)
		}
		if len(rest) < n {
			return nil, fmt.Errorf("%w: tuple %d value", ErrTruncated, i)
		}
		msg = append(msg, domain.Tuple{Key: key, Type: typ, Data: rest[:n:n]})
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrTrailing, len(rest))
	}
	return msg, nil
}
