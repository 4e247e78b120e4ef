package cache

const pageSize = 4096

// RAM is a sparse byte-addressable backing store.
type RAM struct {
	pages map[uint64]*[pageSize]byte
}

// NewRAM creates an empty RAM. Unwritten bytes read as zero.
func NewRAM() *RAM {
	return &RAM{pages: make(map[uint64]*[pageSize]byte)}
}

func (m *RAM) page(addr uint64, create bool) *[pageSize]byte {
	base := addr &^ (pageSize - 1)
	p, ok := m.pages[base]
	if !ok && create {
		p = new([pageSize]byte)
		m.pages[base] = p
	}
	return p
}

// Read fetches size bytes at addr.
func (m *RAM) Read(addr uint64, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		a := addr + uint64(i)
		if p := m.page(a, false); p != nil {
			data[i] = p[a%pageSize]
		}
	}
	return data
}

// Write stores data at addr.
func (m *RAM) Write(addr uint64, data []byte) {
	for i, b := range data {
		a := addr + uint64(i)
		m.page(a, true)[a%pageSize] = b
	}
}

// Read32 reads a little-endian word.
func (m *RAM) Read32(addr uint64) uint32 {
	return uint32(extractData(m.Read(addr, 4), 0, 4))
}

// Write32 writes a little-endian word.
func (m *RAM) Write32(addr uint64, v uint32) {
	data := make([]byte, 4)
	storeData(data, 0, 4, uint64(v))
	m.Write(addr, data)
}

// levelBacking presents a cache as the backing store of the level above.
type levelBacking struct {
	next *Cache
}

// NextLevel returns a BackingStore that reads and writes through c.
func NextLevel(c *Cache) BackingStore {
	return levelBacking{next: c}
}

func (l levelBacking) Read(addr uint64, size int) []byte {
	return l.next.transfer(addr, make([]byte, size), false)
}

func (l levelBacking) Write(addr uint64, data []byte) {
	l.next.transfer(addr, data, true)
}
