package collection

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// encodePartition writes a partition as a uvarint pair count, followed by each pair as a
// length-prefixed key and a length-prefixed encoded value
func encodePartition[V any](w io.Writer, pairs []Pair[V], codec Codec[V]) error {
	var header []byte
	header = binary.AppendUvarint(header, uint64(len(pairs)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	var value bytes.Buffer
	for _, pair := range pairs {
		value.Reset()
		if err := codec.Encode(&value, pair.Value); err != nil {
			return fmt.Errorf("unable to encode value for key %s: %w", pair.Key, err)
		}
		if err := writeChunk(w, []byte(pair.Key)); err != nil {
			return err
		}
		if err := writeChunk(w, value.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func writeChunk(w io.Writer, chunk []byte) error {
	var prefix []byte
	prefix = binary.AppendUvarint(prefix, uint64(len(chunk)))
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err := w.Write(chunk)
	return err
}

func decodePartition[V any](r io.Reader, codec Codec[V]) ([]Pair[V], error) {
	br := bufio.NewReader(r)
	count, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	pairs := make([]Pair[V], 0, count)
	for i := uint64(0); i < count; i++ {
		key, err := readChunk(br)
		if err != nil {
			return nil, err
		}
		encoded, err := readChunk(br)
		if err != nil {
			return nil, err
		}
		value, err := codec.Decode(bytes.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("unable to decode value for key %s: %w", key, err)
		}
		pairs = append(pairs, Pair[V]{Key: string(key), Value: value})
	}
	return pairs, nil
}

func readChunk(r *bufio.Reader) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	chunk := make([]byte, size)
	if _, err := io.ReadFull(r, chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}
