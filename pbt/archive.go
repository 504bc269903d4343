package pbt

// ExternalArchive is a bounded collection of parent members kept for
// extra diversity in SHADE/L-SHADE's r2 sampling. On overflow, a
// uniformly random element is evicted before the new one is appended.
// There is no batch or positional insertion.
type ExternalArchive struct {
	size    int
	members []*Member
	rng     *safeRand
}

// NewExternalArchive creates an archive with the given fixed capacity.
func NewExternalArchive(size int, rng *safeRand) *ExternalArchive {
	return &ExternalArchive{size: size, rng: rng}
}

// Len returns the current number of archived members.
func (a *ExternalArchive) Len() int { return len(a.members) }

// Members returns the archived members.
func (a *ExternalArchive) Members() []*Member { return a.members }

// SetSize adjusts the archive's capacity, immediately evicting random
// members down to the new size if the archive currently holds more than
// that; the length never exceeds the capacity, not even between
// Appends.
func (a *ExternalArchive) SetSize(size int) {
	a.size = size
	for a.size >= 0 && len(a.members) > a.size {
		idx := a.rng.intn(len(a.members))
		a.members = append(a.members[:idx], a.members[idx+1:]...)
	}
}

// Append adds parent to the archive, evicting a uniformly random member
// first if already at capacity.
func (a *ExternalArchive) Append(parent *Member) {
	if a.size <= 0 {
		return
	}
	if len(a.members) >= a.size {
		idx := a.rng.intn(len(a.members))
		a.members = append(a.members[:idx], a.members[idx+1:]...)
	}
	a.members = append(a.members, parent)
}
