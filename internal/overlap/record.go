package overlap

import (
	"fmt"
	"io"

	"github.com/dreamware/readtrie/internal/rpcproto"
)

// WriteAnchor writes one raw-mode line, "source_read:offset @cell_index",
// the unexpanded subtree pointer. Used when overlap expansion is
// turned off; the per-anchor cap and minimum-length filters don't
// apply because the expansion is deferred.
func WriteAnchor(w io.Writer, sourceReadID uint64, offset int, cellGlobal uint64) error {
	_, err := fmt.Fprintf(w, "%d:%d @%d\n", sourceReadID, offset, cellGlobal)
	return err
}

// WriteOverlap writes one expansion-mode overlap record: the two read
// identifiers and the offset between them.
func WriteOverlap(w io.Writer, rec rpcproto.OverlapRecord) error {
	_, err := fmt.Fprintf(w, "%d %d %d\n", rec.SourceReadID, rec.TargetReadID, rec.Offset)
	return err
}

// WriteAFG writes one pairwise overlap as an AMOS-style {OVL} block
// for downstream assembly viewers. Identifiers are one-based. adj is
// always "N" (normal orientation): only a read's forward strand is
// ever indexed, so no reverse-complement overlap can arise. scr is
// always 0 (no alignment score is computed), and ahg and bhg both
// carry the offset, the count of unmatched leading letters of the
// source read.
func WriteAFG(w io.Writer, rec rpcproto.OverlapRecord) error {
	_, err := fmt.Fprintf(w,
		"{OVL\nadj:N\nrds:%d,%d\nscr:0\nahg:%d\nbhg:%d\n}\n",
		rec.SourceReadID+1, rec.TargetReadID+1, rec.Offset, rec.Offset,
	)
	return err
}
