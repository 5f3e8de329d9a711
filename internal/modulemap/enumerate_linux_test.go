//go:build linux

package modulemap

import "testing"

func TestParseMapsLine(t *testing.T) {
	cases := []struct {
		line    string
		path    string
		lo, hi  uint64
		wantOK  bool
	}{
		{
			line:   "55a1f2400000-55a1f2401000 r-xp 00000000 08:01 1234  /usr/bin/myfuzzer",
			path:   "/usr/bin/myfuzzer",
			lo:     0x55a1f2400000,
			hi:     0x55a1f2401000,
			wantOK: true,
		},
		{
			line:   "7f0a10000000-7f0a10021000 rw-p 00000000 00:00 0     [heap]",
			wantOK: false,
		},
		{
			line:   "7ffee0000000-7ffee0021000 rw-p 00000000 00:00 0",
			wantOK: false,
		},
		{
			line:   "not a valid line",
			wantOK: false,
		},
	}

	for _, c := range cases {
		path, lo, hi, ok := parseMapsLine(c.line)
		if ok != c.wantOK {
			t.Fatalf("parseMapsLine(%q): ok = %v, want %v", c.line, ok, c.wantOK)
		}
		if !ok {
			continue
		}
		if path != c.path || lo != c.lo || hi != c.hi {
			t.Fatalf("parseMapsLine(%q) = (%q, %#x, %#x), want (%q, %#x, %#x)",
				c.line, path, lo, hi, c.path, c.lo, c.hi)
		}
	}
}

func TestShortName(t *testing.T) {
	cases := map[string]string{
		"/usr/lib/libc.so.6":  "libc.so",
		"/opt/bin/myfuzzer":   "myfuzzer",
		"/a/b/c":              "c",
	}
	for path, want := range cases {
		if got := shortName(path); got != want {
			t.Fatalf("shortName(%q) = %q, want %q", path, got, want)
		}
	}
}
