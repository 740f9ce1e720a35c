package reads

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/dreamware/readtrie/internal/errs"
)

// SortedRecord is one line of the <input>-sorted file: a unique read
// sequence and its identifier.
type SortedRecord struct {
	Sequence string
	ReadID   uint64
}

// SortedReader streams SortedRecords out of a <input>-sorted file (the
// read sequence, a space, then the decimal identifier right-aligned in
// 12 columns), the input the overlap phase's drivers walk in
// sequential-position order.
type SortedReader struct {
	sc *bufio.Scanner
}

// NewSortedReader wraps r for sequential SortedRecord reads.
func NewSortedReader(r io.Reader) *SortedReader {
	return &SortedReader{sc: bufio.NewScanner(r)}
}

// Next returns the next record, or io.EOF when exhausted.
func (sr *SortedReader) Next() (SortedRecord, error) {
	if !sr.sc.Scan() {
		if err := sr.sc.Err(); err != nil {
			return SortedRecord{}, errs.New(errs.IoError, "reads: scan -sorted", err)
		}
		return SortedRecord{}, io.EOF
	}
	line := sr.sc.Text()
	idx := strings.LastIndexByte(line, ' ')
	if idx < 0 {
		return SortedRecord{}, errs.New(errs.InputMalformed, "reads: malformed -sorted line (no separator)", nil)
	}
	seq := strings.TrimRight(line[:idx], " ")
	idField := strings.TrimSpace(line[idx+1:])
	id, err := strconv.ParseUint(idField, 10, 64)
	if err != nil {
		return SortedRecord{}, errs.New(errs.InputMalformed, "reads: malformed -sorted identifier field", err)
	}
	return SortedRecord{Sequence: seq, ReadID: id}, nil
}
