package oplog

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/ordmap/pkg/safeconv"
)

// lz4FrameMagic is the little-endian LZ4 frame magic number 0x184D2204.
var lz4FrameMagic = []byte{0x04, 0x22, 0x4d, 0x18}

// Reader decodes a log written by Writer, compressed or not.
type Reader struct {
	src        *bufio.Reader
	compressed bool
	seq        int
}

// NewReader checks the log header and returns a Reader positioned at the
// first record.
func NewReader(r io.Reader) (*Reader, error) {
	src := bufio.NewReader(r)
	reader := &Reader{src: src}

	head, err := src.Peek(len(lz4FrameMagic))
	if err == nil && bytes.Equal(head, lz4FrameMagic) {
		reader.compressed = true
		reader.src = bufio.NewReader(lz4.NewReader(src))
	}

	header := make([]byte, len(Magic))

	_, err = io.ReadFull(reader.src, header)

	switch {
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("%w: short header", ErrBadMagic)
	case err != nil:
		return nil, fmt.Errorf("read header: %w", err)
	case string(header) != Magic:
		return nil, ErrBadMagic
	}

	return reader, nil
}

// Compressed reports whether the log was LZ4 framed.
func (r *Reader) Compressed() bool {
	return r.compressed
}

// Next returns the next operation, or io.EOF after the last one.
func (r *Reader) Next() (Op, error) {
	kindByte, err := r.src.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Op{}, io.EOF
		}

		return Op{}, fmt.Errorf("read record %d: %w", r.seq, err)
	}

	op := Op{Kind: Kind(kindByte)}
	if !op.Kind.Valid() {
		return Op{}, fmt.Errorf("record %d: %w: %d", r.seq, ErrUnknownKind, kindByte)
	}

	op.Key, err = r.readUint32()
	if err != nil {
		return Op{}, err
	}

	if op.Kind == KindInsert {
		op.Value, err = r.readUint32()
		if err != nil {
			return Op{}, err
		}
	}

	r.seq++

	return op, nil
}

func (r *Reader) readUint32() (uint32, error) {
	raw, err := binary.ReadUvarint(r.src)
	if err != nil {
		return 0, fmt.Errorf("record %d: %w: %w", r.seq, ErrCorrupt, err)
	}

	value, ok := safeconv.Uint64ToUint32(raw)
	if !ok {
		return 0, fmt.Errorf("record %d: %w: %d overflows uint32", r.seq, ErrCorrupt, raw)
	}

	return value, nil
}
