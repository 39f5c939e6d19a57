package naming

import (
	"net/url"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "Chapter 1", want: "Chapter 1"},
		{in: "  Chapter\n\t 2  ", want: "Chapter 2"},
		{in: "a/b\\c", want: "a_b_c"},
		{in: `what? "quoted" <x>|y*`, want: "what_ _quoted_ _x__y_"},
		{in: "..", want: "_"},
		{in: ".hidden.", want: "hidden"},
		{in: "", want: "_"},
		{in: "\x00\x1f", want: "_"},
		{in: "été", want: "été"},
		{in: "bell\x07ring", want: "bellring"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeIdempotentAndSafe(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Chapter 1",
		"../../etc/passwd",
		"  leading and trailing  ",
		"tabs\tand\nnewlines\r\n",
		"e\x00\u0301",
		"名前 / 第1話",
		"CON:",
		"dots...",
		". . .",
		strings.Repeat("é", 300),
		strings.Repeat("a ", 150),
		"zero\u200bwidth",
		"\xff\xfe invalid utf8",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
		assert.NotContains(t, once, "/")
		assert.NotContains(t, once, "\\")
		assert.LessOrEqual(t, len(once), maxSegmentBytes)
		assert.NotEqual(t, "..", once)
		for _, r := range once {
			assert.False(t, unicode.IsControl(r), "control rune %U in %q", r, once)
		}
	}
}

func TestIndexedName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "000-a.jpg", IndexedName(0, "a.jpg"))
	assert.Equal(t, "042-b.png", IndexedName(42, "b.png"))
	assert.Equal(t, "1234-c.gif", IndexedName(1234, "c.gif"))
}

func TestFilenameFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "https://cdn.example.com/img/a.jpg", want: "a.jpg"},
		{raw: "https://cdn.example.com/img/page%2001.jpg?x=1", want: "page 01.jpg"},
		{raw: "https://cdn.example.com/img/%E7%94%BB.png", want: "画.png"},
		{raw: "https://cdn.example.com/dir/", want: ""},
		{raw: "https://cdn.example.com", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			got, err := FilenameFromURL(u)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func FuzzSanitize(f *testing.F) {
	for _, seed := range []string{"Chapter 1", "../x", "a/b\\c", "e\x00\u0301", "zero\u200bwidth", "\xff\xfe", " . ", strings.Repeat("é", 150)} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
		if once == "" || once == "." || once == ".." {
			t.Fatalf("Sanitize(%q) = %q is not a usable name", in, once)
		}
		if len(once) > maxSegmentBytes {
			t.Fatalf("Sanitize(%q) is %d bytes", in, len(once))
		}
		if !utf8.ValidString(once) {
			t.Fatalf("Sanitize(%q) = %q is not valid UTF-8", in, once)
		}
		if strings.ContainsAny(once, reserved) {
			t.Fatalf("Sanitize(%q) = %q contains a reserved character", in, once)
		}
		for _, r := range once {
			if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
				t.Fatalf("Sanitize(%q) = %q contains control rune %U", in, once, r)
			}
		}
	})
}
