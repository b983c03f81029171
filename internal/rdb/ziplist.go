package rdb

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// decodeZiplist expands a ziplist-encoded payload (the compact list
// representation RDB type 11/14 nests string values in) into its ordered
// list of raw entries. Entries that were stored as ziplist integer
// encodings come back as their decimal ASCII form, matching what `redis-cli`
// shows for the same entries.
func decodeZiplist(buf []byte) ([][]byte, error) {
	if len(buf) < 11 {
		return nil, fmt.Errorf("%w: ziplist too short", ErrMalformed)
	}
	// header: <zlbytes u32><zltail u32><zllen u16>, all little-endian
	pos := 10
	var out [][]byte
	for pos < len(buf) {
		if buf[pos] == 0xFF {
			break
		}
		entry, n, err := decodeZiplistEntry(buf[pos:])
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
		pos += n
	}
	return out, nil
}

func decodeZiplistEntry(buf []byte) (value []byte, consumed int, err error) {
	pos := 0
	// prevlen: 1 byte if < 254, else 0xFE followed by 4-byte length.
	if len(buf) == 0 {
		return nil, 0, fmt.Errorf("%w: truncated ziplist entry", ErrMalformed)
	}
	if buf[pos] < 254 {
		pos++
	} else {
		pos += 5
	}
	if pos >= len(buf) {
		return nil, 0, fmt.Errorf("%w: truncated ziplist entry header", ErrMalformed)
	}
	enc := buf[pos]
	switch enc >> 6 {
	case 0: // 6-bit string length
		l := int(enc & 0x3F)
		pos++
		if pos+l > len(buf) {
			return nil, 0, fmt.Errorf("%w: ziplist string overruns buffer", ErrMalformed)
		}
		return append([]byte(nil), buf[pos:pos+l]...), pos + l, nil
	case 1: // 14-bit string length
		if pos+1 >= len(buf) {
			return nil, 0, fmt.Errorf("%w: truncated ziplist 14-bit length", ErrMalformed)
		}
		l := int(enc&0x3F)<<8 | int(buf[pos+1])
		pos += 2
		if pos+l > len(buf) {
			return nil, 0, fmt.Errorf("%w: ziplist string overruns buffer", ErrMalformed)
		}
		return append([]byte(nil), buf[pos:pos+l]...), pos + l, nil
	case 2: // 32-bit string length, only when enc == 0x80
		if enc != 0x80 {
			break
		}
		if pos+5 > len(buf) {
			return nil, 0, fmt.Errorf("%w: truncated ziplist 32-bit length", ErrMalformed)
		}
		l := int(binary.BigEndian.Uint32(buf[pos+1 : pos+5]))
		pos += 5
		if pos+l > len(buf) {
			return nil, 0, fmt.Errorf("%w: ziplist string overruns buffer", ErrMalformed)
		}
		return append([]byte(nil), buf[pos:pos+l]...), pos + l, nil
	}
	// top two bits are 11: integer encoding, selected by the full byte.
	switch enc {
	case 0xC0: // int16
		if pos+3 > len(buf) {
			return nil, 0, fmt.Errorf("%w: truncated ziplist int16", ErrMalformed)
		}
		v := int16(binary.LittleEndian.Uint16(buf[pos+1 : pos+3]))
		return []byte(strconv.FormatInt(int64(v), 10)), pos + 3, nil
	case 0xD0: // int32
		if pos+5 > len(buf) {
			return nil, 0, fmt.Errorf("%w: truncated ziplist int32", ErrMalformed)
		}
		v := int32(binary.LittleEndian.Uint32(buf[pos+1 : pos+5]))
		return []byte(strconv.FormatInt(int64(v), 10)), pos + 5, nil
	case 0xE0: // int64
		if pos+9 > len(buf) {
			return nil, 0, fmt.Errorf("%w: truncated ziplist int64", ErrMalformed)
		}
		v := int64(binary.LittleEndian.Uint64(buf[pos+1 : pos+9]))
		return []byte(strconv.FormatInt(v, 10)), pos + 9, nil
	case 0xF0: // 24-bit int
		if pos+4 > len(buf) {
			return nil, 0, fmt.Errorf("%w: truncated ziplist int24", ErrMalformed)
		}
		raw := uint32(buf[pos+1]) | uint32(buf[pos+2])<<8 | uint32(buf[pos+3])<<16
		if raw&0x800000 != 0 {
			raw |= 0xFF000000
		}
		return []byte(strconv.FormatInt(int64(int32(raw)), 10)), pos + 4, nil
	case 0xFE: // int8
		if pos+2 > len(buf) {
			return nil, 0, fmt.Errorf("%w: truncated ziplist int8", ErrMalformed)
		}
		v := int8(buf[pos+1])
		return []byte(strconv.FormatInt(int64(v), 10)), pos + 2, nil
	}
	// 4-bit immediate: encodings 0xF1..0xFD store (value+1) in the low
	// nibble, representing integers 0..12 inline with no extra byte.
	if enc >= 0xF1 && enc <= 0xFD {
		v := int64(enc&0x0F) - 1
		return []byte(strconv.FormatInt(v, 10)), pos + 1, nil
	}
	return nil, 0, fmt.Errorf("%w: unrecognized ziplist encoding byte 0x%02x", ErrMalformed, enc)
}
