package hasher

import "testing"

func TestHashFormat(t *testing.T) {
	h := Hash([]byte("hello"))
	if len(h) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h))
	}
	for _, r := range h {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("hash %q is not lowercase hex", h)
		}
	}
}

func TestNormalizeTextLineEndings(t *testing.T) {
	crlf := "line one\r\nline two\r\n"
	lf := "line one\nline two\n"
	if NormalizeText(crlf) != NormalizeText(lf) {
		t.Fatalf("CRLF and LF input should normalise identically")
	}
}

func TestCanonicalizeTextDeterministic(t *testing.T) {
	_, h1 := CanonicalizeText("same content\r\n")
	_, h2 := CanonicalizeText("same content\n")
	if h1 != h2 {
		t.Fatalf("line-ending variants should hash identically")
	}
}

func TestRequestHashDedupKey(t *testing.T) {
	h1, err := RequestHash("planning_agent", map[string]string{"base_prompt": "abc"}, "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := RequestHash("planning_agent", map[string]string{"base_prompt": "abc"}, "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("identical envelope/inputs/schema must dedup to the same request hash")
	}

	h3, err := RequestHash("planning_agent", map[string]string{"base_prompt": "xyz"}, "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h3 {
		t.Fatalf("different input hashes must not collide")
	}
}
