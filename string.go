package calc

// stringTable interns the text and formula strings stored in sheets, with
// reference counting so cleared cells release their strings. shared
// formula groups expand to many cells with the same text, and each is
// stored once.
type stringTable struct {
	ids       map[string]uint32
	strings   map[uint32]string
	refCounts map[uint32]int
	nextID    uint32
}

func newStringTable() *stringTable {
	return &stringTable{
		ids:       make(map[string]uint32),
		strings:   make(map[uint32]string),
		refCounts: make(map[uint32]int),
		nextID:    1, // 0 means no string
	}
}

// intern adds a reference to s and returns its id
func (st *stringTable) intern(s string) uint32 {
	if id, exists := st.ids[s]; exists {
		st.refCounts[id]++
		return id
	}
	id := st.nextID
	st.ids[s] = id
	st.strings[id] = s
	st.refCounts[id] = 1
	st.nextID++
	return id
}

func (st *stringTable) lookup(id uint32) (string, bool) {
	s, exists := st.strings[id]
	return s, exists
}

// release drops a reference. the string is forgotten with its last
// reference. returns true if it was removed.
func (st *stringTable) release(id uint32) bool {
	s, exists := st.strings[id]
	if !exists {
		return false
	}
	st.refCounts[id]--
	if st.refCounts[id] > 0 {
		return false
	}
	delete(st.ids, s)
	delete(st.strings, id)
	delete(st.refCounts, id)
	return true
}

func (st *stringTable) count() int {
	return len(st.ids)
}
