package core

// Key identifies a single computation. It is an arbitrary byte sequence,
// including embedded NUL bytes; Go strings are not NUL-terminated, so
// Key round-trips any byte content while still working as a map key.
type Key string

// Value is the opaque result of computing a Key. The engine never
// interprets its contents.
type Value []byte

// Clone returns an independent copy of v, safe to retain after the
// caller's buffer is reused.
func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	copy(out, v)
	return out
}

// Equal reports whether v and other hold identical bytes.
func (v Value) Equal(other Value) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

// KeyList is an ordered, deduplicated sequence of Keys, used to
// represent a rule's recorded dependency list (requested keys followed
// by discovered keys, in request order, duplicates forbidden).
type KeyList []Key

// contains reports whether k appears in the list.
func (l KeyList) contains(k Key) bool {
	for _, existing := range l {
		if existing == k {
			return true
		}
	}
	return false
}

// appendUnique appends k if it is not already present, returning the
// possibly-extended list and whether an append occurred.
func (l KeyList) appendUnique(k Key) (KeyList, bool) {
	if l.contains(k) {
		return l, false
	}
	return append(l, k), true
}

// Clone returns an independent copy of the list.
func (l KeyList) Clone() KeyList {
	if l == nil {
		return nil
	}
	out := make(KeyList, len(l))
	copy(out, l)
	return out
}
