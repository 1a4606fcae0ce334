package hasher

import "testing"

func TestJCSKeyOrdering(t *testing.T) {
	a, err := JCS(map[string]interface{}{"b": 1, "a": 2, "c": 3})
	if err != nil {
		t.Fatalf("JCS: %v", err)
	}
	want := `{"a":2,"b":1,"c":3}`
	if string(a) != want {
		t.Fatalf("got %s, want %s", a, want)
	}
}

func TestJCSDeterministicAcrossMapOrder(t *testing.T) {
	v1 := map[string]interface{}{"x": 1, "y": []interface{}{1, 2, 3}}
	v2 := map[string]interface{}{"y": []interface{}{1, 2, 3}, "x": 1}

	b1, err := JCS(v1)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := JCS(v2)
	if err != nil {
		t.Fatal(err)
	}
	if string(b1) != string(b2) {
		t.Fatalf("canonical forms diverged: %s vs %s", b1, b2)
	}
}

func TestJCSNoHTMLEscaping(t *testing.T) {
	b, err := JCS(map[string]interface{}{"tag": "<script>&"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"tag":"<script>&"}`
	if string(b) != want {
		t.Fatalf("got %s, want %s (HTML escaping must be disabled per RFC 8785)", b, want)
	}
}

func TestCanonicalHashStable(t *testing.T) {
	h1, err := CanonicalHash(map[string]interface{}{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := CanonicalHash(map[string]interface{}{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hash should be independent of map insertion order: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(h1))
	}
}
