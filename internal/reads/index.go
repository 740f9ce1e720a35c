package reads

import (
	"encoding/binary"
	"io"

	"github.com/dreamware/readtrie/internal/errs"
)

// IndexWriter appends one 64-bit little-endian byte offset per read
// identifier to the <input>-index file, in identifier order: callers
// must call Write once per read, in the order identifiers were
// assigned.
type IndexWriter struct {
	w io.Writer
}

// NewIndexWriter wraps w for sequential offset writes.
func NewIndexWriter(w io.Writer) *IndexWriter { return &IndexWriter{w: w} }

// Write appends one offset.
func (iw *IndexWriter) Write(byteOffset int64) error {
	if err := binary.Write(iw.w, binary.LittleEndian, uint64(byteOffset)); err != nil {
		return errs.New(errs.IoError, "reads: write index entry", err)
	}
	return nil
}

// ReadIndex reads the whole <input>-index file into a slice, one entry
// per read identifier.
func ReadIndex(r io.Reader) ([]int64, error) {
	var out []int64
	for {
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, errs.New(errs.IoError, "reads: read index entry", err)
		}
		out = append(out, int64(v))
	}
}
