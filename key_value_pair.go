package kvsql

// KeyValuePair is a tuple, used where keyed values travel together, e.g. the
// dirty entries collected from a transaction cache on commit.
type KeyValuePair[TK any, TV any] struct {
	Key   TK
	Value TV
}
