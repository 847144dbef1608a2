package oplog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Writer appends operations to a log.
type Writer struct {
	buf     *bufio.Writer
	zw      *lz4.Writer
	scratch []byte
	count   int
}

// NewWriter writes the log header to w and returns a Writer. With compress
// set the stream is wrapped in an LZ4 frame. Close must be called to flush.
func NewWriter(w io.Writer, compress bool) (*Writer, error) {
	writer := &Writer{scratch: make([]byte, 0, 1+2*binary.MaxVarintLen32)}

	sink := w

	if compress {
		writer.zw = lz4.NewWriter(w)

		err := writer.zw.Apply(lz4.CompressionLevelOption(lz4.Fast))
		if err != nil {
			return nil, fmt.Errorf("configure lz4: %w", err)
		}

		sink = writer.zw
	}

	writer.buf = bufio.NewWriter(sink)

	_, err := writer.buf.WriteString(Magic)
	if err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	return writer, nil
}

// Write appends one operation.
func (w *Writer) Write(op Op) error {
	if !op.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, op.Kind)
	}

	record := append(w.scratch[:0], byte(op.Kind))
	record = binary.AppendUvarint(record, uint64(op.Key))

	if op.Kind == KindInsert {
		record = binary.AppendUvarint(record, uint64(op.Value))
	}

	_, err := w.buf.Write(record)
	if err != nil {
		return fmt.Errorf("write %s: %w", op, err)
	}

	w.count++

	return nil
}

// Count returns the number of operations written so far.
func (w *Writer) Count() int {
	return w.count
}

// Close flushes buffered records and terminates the LZ4 frame if any.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	err := w.buf.Flush()

	if w.zw != nil {
		err = errors.Join(err, w.zw.Close())
	}

	if err != nil {
		return fmt.Errorf("close oplog: %w", err)
	}

	return nil
}
