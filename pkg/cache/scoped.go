package cache

// ScopedKeyer wraps a Keyer with a prefix. A Redis instance shared with other
// applications gets a "noirforge:" namespace this way.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "noirforge:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ArchiveKey generates a prefixed archive key.
func (k *ScopedKeyer) ArchiveKey(url string) string {
	return k.prefix + k.inner.ArchiveKey(url)
}
