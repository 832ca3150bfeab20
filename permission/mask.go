package permission

// Mask is a 64-bit permission set indexed by [Registry] bit positions.
type Mask uint64

func (m Mask) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return m&(1<<bit) != 0
}

func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << bit
}

func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= 1 << bit
}

// Contains reports whether every bit of other is set in m.
func (m Mask) Contains(other Mask) bool {
	return m&other == other
}

func (m Mask) Raw() uint64 {
	return uint64(m)
}
