package store

import (
	"encoding/binary"
	"fmt"

	"github.com/anvil-build/anvil/internal/core"
)

// marshalDependencies encodes a KeyList as a sequence of
// (uint32 length, bytes) pairs. JSON would require a string encoding
// that can't represent a Key with embedded NUL or invalid UTF-8; this
// format round-trips any byte content.
func marshalDependencies(deps core.KeyList) []byte {
	var size int
	for _, k := range deps {
		size += 4 + len(k)
	}
	buf := make([]byte, 0, size)
	for _, k := range deps {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(k)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, k...)
	}
	return buf
}

// unmarshalDependencies decodes a blob produced by marshalDependencies.
func unmarshalDependencies(blob []byte) (core.KeyList, error) {
	var deps core.KeyList
	for len(blob) > 0 {
		if len(blob) < 4 {
			return nil, fmt.Errorf("store: truncated dependency length prefix")
		}
		n := binary.BigEndian.Uint32(blob[:4])
		blob = blob[4:]
		if uint64(len(blob)) < uint64(n) {
			return nil, fmt.Errorf("store: truncated dependency key, want %d bytes", n)
		}
		deps = append(deps, core.Key(blob[:n]))
		blob = blob[n:]
	}
	return deps, nil
}
