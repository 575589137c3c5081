package byteutil

import (
	"unsafe"
)

// BytesToString converts without copying. The caller must not mutate b
// afterwards.
func BytesToString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}
