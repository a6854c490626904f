package slab

// Object is a handle to one allocated object: which cache and slab it came
// from and its index within that slab's object array. Carrying this
// explicitly, instead of reinterpreting the object's backing address back
// into a slab/cache pair, keeps Free O(1) without resorting to pointer
// arithmetic over raw memory (the same tagged-reference approach the
// descriptor table uses in place of type-punned list pointers).
type Object struct {
	cache *Cache
	slab  *slabInstance
	index uint32
}

// Bytes returns the object's backing storage.
func (o *Object) Bytes() []byte {
	return o.slab.object(o.index, o.cache.objSize)
}
