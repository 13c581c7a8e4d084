package model

// Batch is the typed entity collection handed over by the parser.
type Batch []Object

// Contains reports whether an entity with the given key is part of the batch.
func (b Batch) Contains(key Key) bool {
	for _, o := range b {
		if KeyOf(o) == key {
			return true
		}
	}
	return false
}

// References collects the cross-references of every entity in the batch.
func (b Batch) References() []Reference {
	var refs []Reference
	for _, o := range b {
		if r, ok := o.(Referencer); ok {
			refs = append(refs, r.References()...)
		}
	}
	return refs
}

// Partition splits the batch into the entities of the requested kind, in
// order, and everything else.
func Partition[T Object](b Batch) (primary []T, companions Batch) {
	for _, o := range b {
		if v, ok := o.(T); ok {
			primary = append(primary, v)
			continue
		}
		companions = append(companions, o)
	}
	return primary, companions
}
