package server

import (
	"strings"

	"github.com/coolcache/coolcache/internal/resp"
)

// errReply turns a keyspace or streams error into the RESP error frame it
// should produce. Messages that already carry their wire code (WRONGTYPE,
// the stream ID errors) pass through untouched; anything else gets the
// generic ERR code.
func errReply(err error) *resp.Frame {
	msg := err.Error()
	if strings.HasPrefix(msg, "ERR ") || strings.HasPrefix(msg, "WRONGTYPE ") {
		return resp.Err(msg)
	}
	return resp.Err("ERR " + msg)
}

func okOrErr(err error) *resp.Frame {
	if err != nil {
		return errReply(err)
	}
	return resp.Simple("OK")
}

func intOrErr(n int, err error) *resp.Frame {
	if err != nil {
		return errReply(err)
	}
	return resp.Integer(int64(n))
}

func bulkOrNil(b []byte, ok bool, err error) *resp.Frame {
	if err != nil {
		return errReply(err)
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Bulk(b)
}

func bulkStringsArray(ss []string) *resp.Frame {
	return resp.ArrayOfBulkStrings(ss)
}

func bytesArray(items [][]byte) *resp.Frame {
	ss := make([]string, len(items))
	for i, b := range items {
		ss[i] = string(b)
	}
	return resp.ArrayOfBulkStrings(ss)
}
