package checksum

import (
	"io"
	"strings"
	"testing"
)

const (
	// echo -n "hello" | sha256sum
	helloSum = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	emptySum = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestSum(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"hello", "hello", helloSum},
		{"empty string", "", emptySum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sum([]byte(tt.input)); got != tt.want {
				t.Errorf("Sum(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{12, helloSum[:12]},
		{1, helloSum[:1]},
		{0, helloSum},
		{-3, helloSum},
		{100, helloSum},
	}

	for _, tt := range tests {
		if got := Short([]byte("hello"), tt.n); got != tt.want {
			t.Errorf("Short(hello, %d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestWriter(t *testing.T) {
	w := NewWriter()
	if got := w.Sum(); got != emptySum {
		t.Errorf("empty Writer.Sum() = %q, want %q", got, emptySum)
	}

	if _, err := io.Copy(w, strings.NewReader("hel")); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if _, err := w.Write([]byte("lo")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := w.Sum(); got != helloSum {
		t.Errorf("Writer.Sum() = %q, want %q", got, helloSum)
	}
}
