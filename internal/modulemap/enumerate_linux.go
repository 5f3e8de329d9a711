// Linux module enumeration via /proc/self/maps.
//
// This is the same pseudo-file scanning idiom used throughout the pack for
// reading process state out of /proc: open once, bufio.Scanner line by
// line, no external parser.
//
//go:build linux

package modulemap

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Default returns the Linux module enumerator.
func Default() Enumerator {
	return enumerateLinux
}

// enumerateLinux parses /proc/self/maps and collapses the (typically
// several) mapped segments of each backing file — text, rodata, data — into
// one Module spanning the lowest start address to the highest end address
// observed for that path. Anonymous mappings ("[heap]", "[stack]",
// "[vdso]", or no pathname at all) are not modules and are skipped.
func enumerateLinux() ([]Module, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	order := make([]string, 0, 16)
	spans := make(map[string]*span, 16)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		path, lo, hi, ok := parseMapsLine(sc.Text())
		if !ok {
			continue
		}
		sp, seen := spans[path]
		if !seen {
			sp = &span{lo: lo, hi: hi}
			spans[path] = sp
			order = append(order, path)
			continue
		}
		if lo < sp.lo {
			sp.lo = lo
		}
		if hi > sp.hi {
			sp.hi = hi
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	mods := make([]Module, 0, len(order))
	for _, path := range order {
		sp := spans[path]
		mods = append(mods, Module{
			Name:        shortName(path),
			BaseAddress: sp.lo,
			Size:        sp.hi - sp.lo,
		})
	}
	return mods, nil
}

type span struct {
	lo, hi uint64
}

// parseMapsLine parses one line of /proc/self/maps, e.g.:
//
//	55a1f2400000-55a1f2401000 r-xp 00000000 08:01 1234  /usr/bin/myfuzzer
//
// ok is false for anonymous mappings (no absolute pathname) and for
// pseudo-paths such as "[heap]", "[stack]", "[vdso]", "[vsyscall]".
func parseMapsLine(line string) (path string, lo, hi uint64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return "", 0, 0, false
	}
	path = fields[5]
	if path == "" || path[0] != '/' {
		return "", 0, 0, false
	}

	rng := fields[0]
	dash := strings.IndexByte(rng, '-')
	if dash < 0 {
		return "", 0, 0, false
	}
	lo64, err := strconv.ParseUint(rng[:dash], 16, 64)
	if err != nil {
		return "", 0, 0, false
	}
	hi64, err := strconv.ParseUint(rng[dash+1:], 16, 64)
	if err != nil {
		return "", 0, 0, false
	}
	return path, lo64, hi64, true
}
