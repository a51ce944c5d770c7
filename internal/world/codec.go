package world

import (
	"cmp"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Sets encode as [[[id, item]...], next] with entries in ascending id
// order, so equal sets always produce identical bytes.

func (s *BodySet) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeSet(enc, s.Items, s.Next)
}

func (s *BodySet) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeSet(dec, &s.Items, &s.Next)
}

func (s *ColliderSet) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeSet(enc, s.Items, s.Next)
}

func (s *ColliderSet) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeSet(dec, &s.Items, &s.Next)
}

func (s *JointSet) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeSet(enc, s.Items, s.Next)
}

func (s *JointSet) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeSet(dec, &s.Items, &s.Next)
}

func encodeSet[K cmp.Ordered, V any](enc *msgpack.Encoder, items map[K]*V, next K) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(items)); err != nil {
		return err
	}
	for _, id := range sortedKeys(items) {
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.Encode(id); err != nil {
			return err
		}
		if err := enc.Encode(items[id]); err != nil {
			return err
		}
	}
	return enc.Encode(next)
}

func decodeSet[K comparable, V any](dec *msgpack.Decoder, items *map[K]*V, next *K) error {
	if err := expectLen(dec, 2); err != nil {
		return err
	}
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	m := make(map[K]*V, max(n, 0))
	for i := 0; i < n; i++ {
		if err := expectLen(dec, 2); err != nil {
			return err
		}
		var id K
		if err := dec.Decode(&id); err != nil {
			return err
		}
		v := new(V)
		if err := dec.Decode(v); err != nil {
			return err
		}
		if _, dup := m[id]; dup {
			return fmt.Errorf("world: duplicate id %v in encoded set", id)
		}
		m[id] = v
	}
	if err := dec.Decode(next); err != nil {
		return err
	}
	*items = m
	return nil
}

func expectLen(dec *msgpack.Decoder, want int) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("world: encoded set has %d fields, want %d", n, want)
	}
	return nil
}
