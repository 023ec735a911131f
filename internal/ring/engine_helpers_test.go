package ring

import (
	"encoding/binary"
	"unsafe"
)

func putUint64(buf []byte, v uint64) {
	binary.LittleEndian.PutUint64(buf, v)
}

func getUint64(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

func ptrOf(b []byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}
