package edgeword

import "testing"

func TestEmpty(t *testing.T) {
	if !IsEmpty(Empty) {
		t.Fatal("zero word must be empty")
	}
	if IsEmpty(MustMakeLeaf(0)) {
		t.Fatal("a leaf with id 0 is not empty, even though its payload is 0")
	}
}

func TestMakeChildRoundTrip(t *testing.T) {
	for _, idx := range []uint64{0, 1, 42, MaxPayload} {
		w, err := MakeChild(idx)
		if err != nil {
			t.Fatalf("MakeChild(%d): %v", idx, err)
		}
		if IsTerminal(w) {
			t.Fatalf("MakeChild(%d) produced a terminal word", idx)
		}
		if got := Payload(w); got != idx {
			t.Fatalf("Payload = %d, want %d", got, idx)
		}
	}
}

func TestMakeLeafRoundTrip(t *testing.T) {
	for _, id := range []uint64{0, 1, 999, MaxPayload} {
		w, err := MakeLeaf(id)
		if err != nil {
			t.Fatalf("MakeLeaf(%d): %v", id, err)
		}
		if !IsTerminal(w) {
			t.Fatalf("MakeLeaf(%d) produced a non-terminal word", id)
		}
		if got := Payload(w); got != id {
			t.Fatalf("Payload = %d, want %d", got, id)
		}
	}
}

func TestMakeChildOverflow(t *testing.T) {
	if _, err := MakeChild(MaxPayload + 1); err == nil {
		t.Fatal("expected overflow error")
	}
	if _, err := MakeLeaf(MaxPayload + 1); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestSymbolIndex(t *testing.T) {
	cases := map[byte]int{
		'A': SymA, 'a': SymA,
		'C': SymC, 'c': SymC,
		'G': SymG, 'g': SymG,
		'T': SymT, 't': SymT,
		'N': SymN, 'n': SymN, 'X': SymN, '-': SymN,
	}
	for c, want := range cases {
		if got := SymbolIndex(c); got != want {
			t.Errorf("SymbolIndex(%q) = %d, want %d", c, got, want)
		}
	}
}

func TestSymbolByteRoundTrip(t *testing.T) {
	for sym := 0; sym < NumSymbols; sym++ {
		b := SymbolByte(sym)
		if SymbolIndex(b) != sym {
			t.Errorf("SymbolByte(%d)=%q does not round-trip through SymbolIndex", sym, b)
		}
	}
}
