// Package rdb implements CoolCache's binary snapshot format: a Redis
// RDB-compatible writer restricted to the plain encodings it can always
// round-trip, and a reader that additionally accepts the richer ziplist,
// quicklist, and LZF-compressed forms a real Redis server may have written.
package rdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc64"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/coolcache/coolcache/internal/keyspace"
)

const (
	magic          = "REDIS"
	rdbVersion     = "0011"
	opAux          = 0xFA
	opResizeDB     = 0xFB
	opExpireMs     = 0xFC
	opExpireSec    = 0xFD
	opSelectDB     = 0xFE
	opEOF          = 0xFF
	typeString     = 0
	typeList       = 1
	typeSet        = 2
	typeZSet       = 3
	typeHash       = 4
	typeZSet2      = 5
	typeHashZiplst = 11
	typeQuicklist  = 14
)

// crc64Table is the Jones polynomial variant Redis uses for its RDB
// trailer, the same constant rdb_writer.py passes to its crc64 helper.
// crc64.MakeTable takes the bit-reflected form of the polynomial
// (0xad93d23594c935a9 reflected).
var crc64Table = crc64.MakeTable(0x95ac9329ac4bc9b5)

// crc64Jones computes Redis's CRC-64/Jones: unlike crc64.Checksum it starts
// from 0 and does not invert the result.
func crc64Jones(data []byte) uint64 {
	var crc uint64
	for _, b := range data {
		crc = crc64Table[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}

// Write serializes records to w in CoolCache's RDB format. Stream values
// are skipped: streams are not part of the persisted snapshot (see the
// design notes on why XADD history does not survive a restart).
func Write(w io.Writer, records []keyspace.Record) error {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	if _, err := bw.WriteString(magic + rdbVersion); err != nil {
		return err
	}
	if err := writeAux(bw, "redis-ver", "7.0.0"); err != nil {
		return err
	}

	if err := bw.WriteByte(opSelectDB); err != nil {
		return err
	}
	if err := writeLength(bw, 0); err != nil {
		return err
	}

	persistable := make([]keyspace.Record, 0, len(records))
	expiring := 0
	for _, rec := range records {
		if rec.Value.Kind == keyspace.KindStream {
			continue
		}
		persistable = append(persistable, rec)
		if rec.ExpiresAt != nil {
			expiring++
		}
	}

	if err := bw.WriteByte(opResizeDB); err != nil {
		return err
	}
	if err := writeLength(bw, uint64(len(persistable))); err != nil {
		return err
	}
	if err := writeLength(bw, uint64(expiring)); err != nil {
		return err
	}

	for _, rec := range persistable {
		if rec.ExpiresAt != nil {
			if err := bw.WriteByte(opExpireMs); err != nil {
				return err
			}
			var tbuf [8]byte
			binary.LittleEndian.PutUint64(tbuf[:], uint64(rec.ExpiresAt.UnixMilli()))
			if _, err := bw.Write(tbuf[:]); err != nil {
				return err
			}
		}
		if err := writeRecord(bw, rec); err != nil {
			return err
		}
	}

	if err := bw.WriteByte(opEOF); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	sum := crc64Jones(buf.Bytes())
	var sumBuf [8]byte
	binary.LittleEndian.PutUint64(sumBuf[:], sum)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(sumBuf[:])
	return err
}

func writeAux(bw *bufio.Writer, key, val string) error {
	if err := bw.WriteByte(opAux); err != nil {
		return err
	}
	if err := writeString(bw, []byte(key)); err != nil {
		return err
	}
	return writeString(bw, []byte(val))
}

func writeRecord(bw *bufio.Writer, rec keyspace.Record) error {
	v := rec.Value
	switch v.Kind {
	case keyspace.KindString:
		if err := bw.WriteByte(typeString); err != nil {
			return err
		}
		if err := writeString(bw, []byte(rec.Key)); err != nil {
			return err
		}
		return writeString(bw, v.Str)

	case keyspace.KindList:
		if err := bw.WriteByte(typeList); err != nil {
			return err
		}
		if err := writeString(bw, []byte(rec.Key)); err != nil {
			return err
		}
		if err := writeLength(bw, uint64(len(v.List))); err != nil {
			return err
		}
		for _, e := range v.List {
			if err := writeString(bw, e); err != nil {
				return err
			}
		}
		return nil

	case keyspace.KindSet:
		if err := bw.WriteByte(typeSet); err != nil {
			return err
		}
		if err := writeString(bw, []byte(rec.Key)); err != nil {
			return err
		}
		if err := writeLength(bw, uint64(len(v.Set))); err != nil {
			return err
		}
		for m := range v.Set {
			if err := writeString(bw, []byte(m)); err != nil {
				return err
			}
		}
		return nil

	case keyspace.KindHash:
		if err := bw.WriteByte(typeHash); err != nil {
			return err
		}
		if err := writeString(bw, []byte(rec.Key)); err != nil {
			return err
		}
		fields := v.Hash.All()
		if err := writeLength(bw, uint64(len(fields))); err != nil {
			return err
		}
		for _, f := range fields {
			if err := writeString(bw, []byte(f.Field)); err != nil {
				return err
			}
			if err := writeString(bw, f.Value); err != nil {
				return err
			}
		}
		return nil

	case keyspace.KindZSet:
		if err := bw.WriteByte(typeZSet2); err != nil {
			return err
		}
		if err := writeString(bw, []byte(rec.Key)); err != nil {
			return err
		}
		members := v.ZSet.Range(0, -1)
		if err := writeLength(bw, uint64(len(members))); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeString(bw, []byte(m.Member)); err != nil {
				return err
			}
			var sbuf [8]byte
			binary.LittleEndian.PutUint64(sbuf[:], math.Float64bits(m.Score))
			if _, err := bw.Write(sbuf[:]); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("rdb: unsupported value kind %v", v.Kind)
	}
}

// Load parses an RDB file's full contents into records. A bad magic
// number, a CRC mismatch (when the trailer is nonzero), or any truncated
// or malformed entry fails the whole load: the caller should start with an
// empty keyspace rather than apply a partial result.
func Load(r io.Reader) ([]keyspace.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < len(magic)+len(rdbVersion)+1+8 {
		return nil, fmt.Errorf("%w: file too short", ErrMalformed)
	}
	if string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformed)
	}

	body := data[:len(data)-8]
	stored := binary.LittleEndian.Uint64(data[len(data)-8:])
	if stored != 0 {
		if computed := crc64Jones(body); computed != stored {
			return nil, fmt.Errorf("%w: crc64 mismatch", ErrMalformed)
		}
	}

	br := bufio.NewReader(bytes.NewReader(body[len(magic)+len(rdbVersion):]))

	var records []keyspace.Record
	var pendingExpiry *int64 // unix millis, nil when no expiry precedes the next key

	for {
		opcode, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: missing EOF opcode", ErrMalformed)
		}
		switch opcode {
		case opEOF:
			return records, nil

		case opAux:
			if _, err := readString(br); err != nil {
				return nil, err
			}
			if _, err := readString(br); err != nil {
				return nil, err
			}

		case opResizeDB:
			if _, _, _, err := readLength(br); err != nil {
				return nil, err
			}
			if _, _, _, err := readLength(br); err != nil {
				return nil, err
			}

		case opSelectDB:
			if _, _, _, err := readLength(br); err != nil {
				return nil, err
			}

		case opExpireMs:
			var buf [8]byte
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return nil, err
			}
			ms := int64(binary.LittleEndian.Uint64(buf[:]))
			pendingExpiry = &ms // ms since epoch

		case opExpireSec:
			var buf [4]byte
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return nil, err
			}
			ms := int64(binary.LittleEndian.Uint32(buf[:])) * 1000
			pendingExpiry = &ms

		default:
			rec, err := readRecord(br, opcode)
			if err != nil {
				return nil, err
			}
			if pendingExpiry != nil {
				at := time.UnixMilli(*pendingExpiry)
				rec.ExpiresAt = &at
				pendingExpiry = nil
			}
			records = append(records, rec)
		}
	}
}

func readRecord(br *bufio.Reader, typeByte byte) (keyspace.Record, error) {
	keyBytes, err := readString(br)
	if err != nil {
		return keyspace.Record{}, err
	}
	key := string(keyBytes)

	value, err := readValue(br, typeByte)
	if err != nil {
		return keyspace.Record{}, err
	}
	return keyspace.Record{Key: key, Value: value}, nil
}

func readValue(br *bufio.Reader, typeByte byte) (keyspace.Value, error) {
	switch typeByte {
	case typeString:
		s, err := readString(br)
		if err != nil {
			return keyspace.Value{}, err
		}
		return keyspace.Value{Kind: keyspace.KindString, Str: s}, nil

	case typeList:
		n, _, _, err := readLength(br)
		if err != nil {
			return keyspace.Value{}, err
		}
		list := make([][]byte, 0, n)
		for i := uint64(0); i < n; i++ {
			e, err := readString(br)
			if err != nil {
				return keyspace.Value{}, err
			}
			list = append(list, e)
		}
		return keyspace.Value{Kind: keyspace.KindList, List: list}, nil

	case typeSet:
		n, _, _, err := readLength(br)
		if err != nil {
			return keyspace.Value{}, err
		}
		set := make(map[string]struct{}, n)
		for i := uint64(0); i < n; i++ {
			m, err := readString(br)
			if err != nil {
				return keyspace.Value{}, err
			}
			set[string(m)] = struct{}{}
		}
		return keyspace.Value{Kind: keyspace.KindSet, Set: set}, nil

	case typeHash:
		n, _, _, err := readLength(br)
		if err != nil {
			return keyspace.Value{}, err
		}
		v := keyspace.NewHashValue()
		for i := uint64(0); i < n; i++ {
			field, err := readString(br)
			if err != nil {
				return keyspace.Value{}, err
			}
			val, err := readString(br)
			if err != nil {
				return keyspace.Value{}, err
			}
			v.Hash.Set(string(field), val)
		}
		return v, nil

	case typeHashZiplst:
		payload, err := readString(br)
		if err != nil {
			return keyspace.Value{}, err
		}
		entries, err := decodeZiplist(payload)
		if err != nil {
			return keyspace.Value{}, err
		}
		v := keyspace.NewHashValue()
		for i := 0; i+1 < len(entries); i += 2 {
			v.Hash.Set(string(entries[i]), entries[i+1])
		}
		return v, nil

	case typeZSet:
		n, _, _, err := readLength(br)
		if err != nil {
			return keyspace.Value{}, err
		}
		v := keyspace.NewZSetValue()
		for i := uint64(0); i < n; i++ {
			member, err := readString(br)
			if err != nil {
				return keyspace.Value{}, err
			}
			score, err := readDoubleASCII(br)
			if err != nil {
				return keyspace.Value{}, err
			}
			v.ZSet.Add(string(member), score, false, false)
		}
		return v, nil

	case typeZSet2:
		n, _, _, err := readLength(br)
		if err != nil {
			return keyspace.Value{}, err
		}
		v := keyspace.NewZSetValue()
		for i := uint64(0); i < n; i++ {
			member, err := readString(br)
			if err != nil {
				return keyspace.Value{}, err
			}
			var sbuf [8]byte
			if _, err := io.ReadFull(br, sbuf[:]); err != nil {
				return keyspace.Value{}, err
			}
			score := math.Float64frombits(binary.LittleEndian.Uint64(sbuf[:]))
			v.ZSet.Add(string(member), score, false, false)
		}
		return v, nil

	case typeQuicklist:
		nodeCount, _, _, err := readLength(br)
		if err != nil {
			return keyspace.Value{}, err
		}
		var list [][]byte
		for i := uint64(0); i < nodeCount; i++ {
			node, err := readString(br)
			if err != nil {
				return keyspace.Value{}, err
			}
			entries, err := decodeZiplist(node)
			if err != nil {
				return keyspace.Value{}, err
			}
			list = append(list, entries...)
		}
		return keyspace.Value{Kind: keyspace.KindList, List: list}, nil

	default:
		return keyspace.Value{}, fmt.Errorf("%w: unsupported type byte 0x%02x", ErrMalformed, typeByte)
	}
}

func readDoubleASCII(br *bufio.Reader) (float64, error) {
	l, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	switch l {
	case 255:
		return math.Inf(-1), nil
	case 254:
		return math.Inf(1), nil
	case 253:
		return math.NaN(), nil
	default:
		buf := make([]byte, l)
		if _, err := io.ReadFull(br, buf); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(string(buf), 64)
	}
}

