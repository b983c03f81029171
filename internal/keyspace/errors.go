package keyspace

import "errors"

var (
	errNoSuchKey       = errors.New("ERR no such key")
	errIndexOutOfRange = errors.New("ERR index out of range")
)
