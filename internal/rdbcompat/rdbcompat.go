// Package rdbcompat gives CoolCache a second, ecosystem-backed path in and
// out of the RDB format: importing real-Redis-produced dump files whose
// encodings go beyond what internal/rdb's hand-built reader accepts, and
// exporting string keys through the same library for DEBUG RELOAD-COMPAT's
// export-and-reimport round trip.
package rdbcompat

import (
	"fmt"
	"io"
	"os"

	"github.com/hdt3213/rdb/encoder"
	"github.com/hdt3213/rdb/parser"

	"github.com/coolcache/coolcache/internal/keyspace"
)

// Import loads path using hdt3213/rdb's parser, tolerating the ziplist,
// listpack, and intset encodings real Redis releases use that our own
// writer never emits. Unsupported object types are skipped rather than
// failing the whole import, since --import-rdb is a best-effort bulk load,
// not the primary SAVE/BGSAVE path.
func Import(path string) ([]keyspace.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []keyspace.Record
	dec := parser.NewDecoder(f)
	err = dec.Parse(func(o parser.RedisObject) bool {
		rec, ok := toRecord(o)
		if ok {
			records = append(records, rec)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("rdbcompat: parse %s: %w", path, err)
	}
	return records, nil
}

func toRecord(o parser.RedisObject) (keyspace.Record, bool) {
	var rec keyspace.Record
	rec.Key = o.GetKey()

	switch obj := o.(type) {
	case *parser.StringObject:
		rec.Value = keyspace.Value{Kind: keyspace.KindString, Str: obj.Value}
	case *parser.ListObject:
		rec.Value = keyspace.Value{Kind: keyspace.KindList, List: obj.Values}
	case *parser.SetObject:
		set := make(map[string]struct{}, len(obj.Members))
		for _, m := range obj.Members {
			set[string(m)] = struct{}{}
		}
		rec.Value = keyspace.Value{Kind: keyspace.KindSet, Set: set}
	case *parser.HashObject:
		v := keyspace.NewHashValue()
		for field, val := range obj.Hash {
			v.Hash.Set(field, val)
		}
		rec.Value = v
	case *parser.ZSetObject:
		v := keyspace.NewZSetValue()
		for _, e := range obj.Entries {
			v.ZSet.Add(e.Member, e.Score, false, false)
		}
		rec.Value = v
	default:
		return keyspace.Record{}, false
	}

	if exp := o.GetExpiration(); exp != nil && !exp.IsZero() {
		at := *exp
		rec.ExpiresAt = &at
	}
	return rec, true
}

// Export writes the string records to w using hdt3213/rdb's encoder, for
// DEBUG RELOAD-COMPAT to read back with Import. Its output is not compared
// with internal/rdb's.
func Export(w io.Writer, records []keyspace.Record) error {
	enc := encoder.NewEncoder(w)
	if err := enc.WriteHeader(); err != nil {
		return err
	}

	expiring := uint64(0)
	for _, r := range records {
		if r.ExpiresAt != nil {
			expiring++
		}
	}
	if err := enc.WriteDBHeader(0, uint64(len(records)), expiring); err != nil {
		return err
	}

	for _, r := range records {
		if r.Value.Kind != keyspace.KindString {
			// The compat exporter only round-trips strings; richer types
			// stay on internal/rdb, which is the path SAVE/BGSAVE actually use.
			continue
		}
		var err error
		if r.ExpiresAt != nil {
			err = enc.WriteStringObject(r.Key, r.Value.Str, encoder.WithTTL(uint64(r.ExpiresAt.UnixMilli())))
		} else {
			err = enc.WriteStringObject(r.Key, r.Value.Str)
		}
		if err != nil {
			return err
		}
	}

	return enc.WriteEnd()
}
