package vkbackend

// table maps the opaque integers handed out through the gpu interfaces to
// the native Vulkan handles behind them. Zero is never issued.
type table[H ~uint64, V any] struct {
	next *uint64
	objs map[H]V
}

func newTable[H ~uint64, V any](next *uint64) table[H, V] {
	return table[H, V]{next: next, objs: make(map[H]V)}
}

func (t table[H, V]) add(v V) H {
	*t.next++
	h := H(*t.next)
	t.objs[h] = v
	return h
}

func (t table[H, V]) get(h H) V { return t.objs[h] }

func (t table[H, V]) lookup(h H) (V, bool) {
	v, ok := t.objs[h]
	return v, ok
}

// take removes h and returns its native handle; ok is false for the null
// handle and for handles already released.
func (t table[H, V]) take(h H) (v V, ok bool) {
	if h == 0 {
		return v, false
	}
	v, ok = t.objs[h]
	delete(t.objs, h)
	return v, ok
}

func (t table[H, V]) all(hs []H) []V {
	out := make([]V, len(hs))
	for i, h := range hs {
		out[i] = t.objs[h]
	}
	return out
}

func (t table[H, V]) len() int { return len(t.objs) }
