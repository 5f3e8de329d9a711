// Darwin module enumeration: the dyld bridge that modulemap.DarwinHook
// delegates to. This lives here, not in internal/modulemap, because it is
// the only thing in this package that needs Mach-O specific cgo beyond the
// shared ABI preamble in main.go — keeping it here means modulemap stays
// cgo-free and unit-testable on every platform.
//
//go:build darwin

package main

/*
#include <mach-o/dyld.h>
#include <mach-o/loader.h>
#include <mach-o/getsect.h>
#include <stdint.h>
#include <string.h>

// dyld_image_base returns the base load address of the i'th loaded image,
// and copies its path into name (a caller-supplied buffer of size
// nameCap). It returns 0 if i is out of range.
static uint64_t dyld_image_base(uint32_t i, char *name, size_t nameCap) {
	if (i >= _dyld_image_count()) {
		return 0;
	}
	const char *path = _dyld_get_image_name(i);
	if (path != NULL && name != NULL && nameCap > 0) {
		strncpy(name, path, nameCap - 1);
		name[nameCap - 1] = '\0';
	}
	return (uint64_t)(uintptr_t)_dyld_get_image_header(i);
}

// dyld_image_vmsize sums the vmsize of every __TEXT/__DATA segment in the
// i'th loaded image's Mach-O header, giving an approximate module span
// from its base address.
static uint64_t dyld_image_vmsize(uint32_t i) {
	if (i >= _dyld_image_count()) {
		return 0;
	}
	const struct mach_header_64 *hdr =
		(const struct mach_header_64 *)_dyld_get_image_header(i);
	if (hdr == NULL) {
		return 0;
	}
	unsigned long size = 0;
	getsegmentdata(hdr, "__TEXT", &size);
	unsigned long dataSize = 0;
	getsegmentdata(hdr, "__DATA", &dataSize);
	return (uint64_t)(size + dataSize);
}

static uint32_t dyld_image_count(void) {
	return _dyld_image_count();
}
*/
import "C"

import (
	"unsafe"

	"github.com/cmptrace/runtime/internal/modulemap"
)

func init() {
	modulemap.DarwinHook = enumerateDarwin
}

// enumerateDarwin walks every image dyld currently has loaded into this
// process and reports its base address, approximate __TEXT+__DATA span,
// and short name, mirroring what enumerate_linux.go derives from
// /proc/self/maps on Linux.
func enumerateDarwin() ([]modulemap.Module, error) {
	count := uint32(C.dyld_image_count())
	mods := make([]modulemap.Module, 0, count)

	var buf [4096]C.char
	for i := uint32(0); i < count; i++ {
		base := uint64(C.dyld_image_base(C.uint32_t(i), &buf[0], C.size_t(len(buf))))
		if base == 0 {
			continue
		}
		size := uint64(C.dyld_image_vmsize(C.uint32_t(i)))
		path := C.GoString((*C.char)(unsafe.Pointer(&buf[0])))
		mods = append(mods, modulemap.Module{
			Name:        shortNameDarwin(path),
			BaseAddress: base,
			Size:        size,
		})
	}
	return mods, nil
}

// shortNameDarwin mirrors modulemap's own unexported shortName (base
// filename, extension dropped); duplicated here since that helper is not
// exported across the package boundary.
func shortNameDarwin(path string) string {
	base := path
	if idx := lastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	if idx := lastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base
}

func lastIndexByte(s string, c byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == c {
			return i
		}
	}
	return -1
}
