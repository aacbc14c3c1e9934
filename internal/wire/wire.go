package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindEntry byte = 1

	flagNil   byte = 1 << 0
	flagGrace byte = 1 << 1
)

var (
	ErrCorrupt = errors.New("depcache: corrupt entry")
	magic4     = [...]byte{'D', 'E', 'P', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry is the decoded storage envelope. Timestamps are epoch milliseconds.
type Entry struct {
	Nil            bool
	CreatedAt      int64
	ExpiresAt      int64
	GraceExpiresAt int64 // 0 => no grace window
	Payload        []byte
}

// Entry layout:
//
//	magic(4) | ver(1) | kind(1=entry) | flags(1) |
//	createdAt(u64 be) | expiresAt(u64 be) | graceExpiresAt(u64 be) |
//	vlen(u32 be) | payload(vlen)
func EncodeEntry(e Entry) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 8*3 + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var flags byte
	if e.Nil {
		flags |= flagNil
	}
	if e.GraceExpiresAt > 0 {
		flags |= flagGrace
	}
	buf.WriteByte(flags)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.CreatedAt))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.ExpiresAt))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.GraceExpiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes()
}

func DecodeEntry(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 1 + 8*3 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}

	flags := b[6]
	off := 7

	createdAt := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	expiresAt := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	graceExpiresAt := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off { // overflow-safe bound check
		return Entry{}, ErrCorrupt
	}

	if flags&flagGrace == 0 && graceExpiresAt != 0 {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Nil:            flags&flagNil != 0,
		CreatedAt:      createdAt,
		ExpiresAt:      expiresAt,
		GraceExpiresAt: graceExpiresAt,
		Payload:        b[off : off+vlen],
	}, nil
}
