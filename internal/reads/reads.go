// Package reads implements the ingestion-side plumbing around the trie
// engine: a four-line-per-record textual read format, the byte-offset
// index file that lets downstream tools recover original records, and
// a reverse-complement helper. None of this package participates in
// the trie or overlap algorithms themselves.
package reads

import (
	"bufio"
	"io"
	"strings"

	"github.com/dreamware/readtrie/internal/errs"
)

// MaxReadLength caps sequence lines; all sequences must share one
// length L <= 1023.
const MaxReadLength = 1023

// Record is one four-line read: header, sequence, '+'-prefixed
// separator, quality.
type Record struct {
	Header    string
	Sequence  string
	Separator string
	Quality   string

	// ByteOffset is where Header begins in the source file, recorded so
	// the -index file can point back at the original record.
	ByteOffset int64
}

// Reader streams Records out of a four-line-per-record input file,
// enforcing that every sequence has the same length.
type Reader struct {
	br     *bufio.Reader
	offset int64
	length int // 0 until the first record fixes it
}

// NewReader wraps r for sequential Record reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the next Record, io.EOF when the input is exhausted
// cleanly (on a header-line boundary), or an *errs.Error of kind
// InputMalformed if the stream ends mid-record or a sequence's length
// disagrees with every prior one.
func (r *Reader) Next() (Record, error) {
	startOffset := r.offset
	header, err := r.readLine()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, errs.New(errs.IoError, "reads: header line", err)
	}

	sequence, err := r.readLine()
	if err != nil {
		return Record{}, errs.New(errs.InputMalformed, "reads: truncated record (missing sequence line)", err)
	}
	separator, err := r.readLine()
	if err != nil {
		return Record{}, errs.New(errs.InputMalformed, "reads: truncated record (missing separator line)", err)
	}
	quality, err := r.readLine()
	if err != nil {
		return Record{}, errs.New(errs.InputMalformed, "reads: truncated record (missing quality line)", err)
	}

	if !strings.HasPrefix(separator, "+") {
		return Record{}, errs.New(errs.InputMalformed, "reads: separator line must start with '+'", nil)
	}
	if len(sequence) > MaxReadLength {
		return Record{}, errs.New(errs.InputMalformed, "reads: sequence exceeds maximum length", nil)
	}
	if r.length == 0 {
		r.length = len(sequence)
	} else if len(sequence) != r.length {
		return Record{}, errs.New(errs.InputMalformed, "READs of differing lengths", nil)
	}

	return Record{
		Header:     header,
		Sequence:   sequence,
		Separator:  separator,
		Quality:    quality,
		ByteOffset: startOffset,
	}, nil
}

// readLine reads one newline-terminated line, stripping the trailing
// newline, and advances r.offset by the number of raw bytes consumed
// (including the newline) so ByteOffset stays accurate.
func (r *Reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	r.offset += int64(len(line))
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadLength returns the uniform sequence length fixed by the first
// record read, or 0 if no record has been read yet.
func (r *Reader) ReadLength() int { return r.length }
