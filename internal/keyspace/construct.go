package keyspace

// NewHashValue returns an empty hash-kind Value, exported so other packages
// (the RDB loader, the replication follower) can build a Value without
// routing through the Keyspace's own locked accessors.
func NewHashValue() Value {
	return Value{Kind: KindHash, Hash: newHash()}
}

// NewZSetValue returns an empty zset-kind Value.
func NewZSetValue() Value {
	return Value{Kind: KindZSet, ZSet: newZSet()}
}
