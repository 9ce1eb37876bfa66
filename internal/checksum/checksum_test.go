package checksum

import "testing"

func TestDigest_Deterministic(t *testing.T) {
	a := Digest([]byte("the same content"))
	b := Digest([]byte("the same content"))
	if a != b {
		t.Errorf("same input produced %q and %q", a, b)
	}
	if len(a) != Width {
		t.Errorf("expected %d hex chars, got %d (%q)", Width, len(a), a)
	}
}

func TestDigest_DistinguishesContent(t *testing.T) {
	if Digest([]byte("one")) == Digest([]byte("two")) {
		t.Error("different inputs produced the same digest")
	}
}

func TestVerify(t *testing.T) {
	data := []byte("hello persona")
	d := Digest(data)
	if !Verify(data, d) {
		t.Error("Verify rejected a matching digest")
	}
	if Verify(data, "00000000") {
		t.Error("Verify accepted a wrong digest")
	}
	data[0] ^= 0xff
	if Verify(data, d) {
		t.Error("Verify accepted flipped content")
	}
}

func TestWellFormed(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0a1b2c3d", true},
		{"deadbeef", true},
		{"DEADBEEF", false},
		{"0a1b2c3", false},
		{"0a1b2c3d4", false},
		{"", false},
		{"not hex!", false},
	}
	for _, c := range cases {
		if got := WellFormed(c.in); got != c.want {
			t.Errorf("WellFormed(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
