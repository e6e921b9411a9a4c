package sim

import "unsafe"

func ptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// BytesAt reinterprets an address handed out by this package as a byte
// slice. Only valid for addresses from a live Memory; the caller must keep
// that Memory alive for the duration of the slice.
func BytesAt(addr uintptr, n int) []byte {
	if addr == 0 || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}
