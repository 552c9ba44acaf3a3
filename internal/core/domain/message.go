package domain

import (
	"bytes"
	"encoding/binary"
)

// Dictionary keys shared by the watch and its companion.
const (
	KeyX           uint32 = 0
	KeyY           uint32 = 1
	KeyNumStations uint32 = 2
	KeyIndex       uint32 = 3
	KeyName        uint32 = 4
	KeyRacks       uint32 = 5
	KeyUpdate      uint32 = 6
)

// TupleType is the value type tag of a dictionary tuple.
type TupleType uint8

const (
	TupleBytes TupleType = iota
	TupleCString
	TupleUint
	TupleInt
)

// Tuple is one key/value entry of an app message dictionary.
type Tuple struct {
	Key  uint32
	Type TupleType
	Data []byte
}

// IntTuple builds a 4-byte signed integer tuple.
func IntTuple(key uint32, v int32) Tuple {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(v))
	return Tuple{Key: key, Type: TupleInt, Data: data}
}

// StringTuple builds a NUL-terminated string tuple.
func StringTuple(key uint32, s string) Tuple {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return Tuple{Key: key, Type: TupleCString, Data: data}
}

// BytesTuple builds a byte array tuple.
func BytesTuple(key uint32, b []byte) Tuple {
	return Tuple{Key: key, Type: TupleBytes, Data: b}
}

// Int32 reads the tuple as an integer, sign- or zero-extending 1, 2 and
// 4 byte values according to the tuple type. Other widths read as zero.
func (t Tuple) Int32() int32 {
	signed := t.Type == TupleInt
	switch len(t.Data) {
	case 1:
		if signed {
			return int32(int8(t.Data[0]))
		}
		return int32(t.Data[0])
	case 2:
		v := binary.LittleEndian.Uint16(t.Data)
		if signed {
			return int32(int16(v))
		}
		return int32(v)
	case 0, 3:
		return 0
	default:
		return int32(binary.LittleEndian.Uint32(t.Data))
	}
}

// String reads the tuple as text, stopping at the first NUL byte.
func (t Tuple) String() string {
	if i := bytes.IndexByte(t.Data, 0); i >= 0 {
		return string(t.Data[:i])
	}
	return string(t.Data)
}

// Message is a decoded app message: an ordered list of tuples.
type Message []Tuple

// Find returns the first tuple with the given key.
func (m Message) Find(key uint32) (Tuple, bool) {
	for _, t := range m {
		if t.Key == key {
			return t, true
		}
	}
	return Tuple{}, false
}

// MessageKind classifies an inbound message by the dispatch rule it hits.
type MessageKind string

const (
	KindCount    MessageKind = "count"
	KindStation  MessageKind = "station"
	KindBikes    MessageKind = "bikes"
	KindPosition MessageKind = "position"
	KindDropped  MessageKind = "dropped"
)
