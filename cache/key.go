package cache

const (
	// DefaultPrefix namespaces entries written without an explicit prefix.
	DefaultPrefix = "cache"
	// LockPrefix namespaces the advisory fill locks.
	LockPrefix = "lock"
)

// Key maps an entity key and optional namespace prefix to a store key:
// prefix + ":" + entityKey, or "cache:" + entityKey when prefix is empty.
//
// Callers are responsible for choosing (entityKey, prefix) pairs that do not
// collide; the codec does not escape separators.
func Key(entityKey, prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ":" + entityKey
}
