package sim

// biMap reconciles external ids with kernel handles. It is confined to the
// worker goroutine.
type biMap[K comparable, V comparable] struct {
	fwd map[K]V
	rev map[V]K
}

func newBiMap[K comparable, V comparable]() biMap[K, V] {
	return biMap[K, V]{fwd: make(map[K]V), rev: make(map[V]K)}
}

func (m biMap[K, V]) put(k K, v V) {
	m.fwd[k] = v
	m.rev[v] = k
}

func (m biMap[K, V]) byKey(k K) (V, bool) {
	v, ok := m.fwd[k]
	return v, ok
}

func (m biMap[K, V]) byValue(v V) (K, bool) {
	k, ok := m.rev[v]
	return k, ok
}

func (m biMap[K, V]) remove(k K) (V, bool) {
	v, ok := m.fwd[k]
	if ok {
		delete(m.fwd, k)
		delete(m.rev, v)
	}
	return v, ok
}

func (m biMap[K, V]) len() int { return len(m.fwd) }
