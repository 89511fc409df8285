package downstream

import "sync"

// Surface owns a physical output area and a sub-region per block
// identifier. Implementations must tolerate UpdateRegion and
// FinalizeRegion calls for an unknown or already-cleared id as a no-op;
// region identity confusion is never fatal to the stream.
type Surface interface {
	// CreateRegion allocates a sub-region for a new block.
	CreateRegion(id int) error

	// UpdateRegion replaces the region's content with a freshly rendered
	// representation.
	UpdateRegion(id int, rendered string) error

	// FinalizeRegion marks the region as settled: its block closed with
	// structurally complete text and will not change again.
	FinalizeRegion(id int) error

	// ClearAll removes every region and releases surface resources.
	ClearAll() error
}

// Region is a mounted block held by a MemorySurface.
type Region struct {
	ID        int
	Content   string
	Finalized bool
}

// MemorySurface is an in-memory Surface. It keeps regions in creation
// order and exposes snapshot accessors, which makes it both the test
// double for the orchestrator and the base for HTMLSurface. The zero
// value is ready to use.
type MemorySurface struct {
	mu      sync.Mutex
	order   []int
	regions map[int]*Region
}

var _ Surface = (*MemorySurface)(nil)

// NewMemorySurface creates an empty MemorySurface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

// CreateRegion allocates a region for id. Creating an id twice keeps the
// existing region.
func (s *MemorySurface) CreateRegion(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.regions == nil {
		s.regions = make(map[int]*Region)
	}
	if _, ok := s.regions[id]; ok {
		return nil
	}
	s.regions[id] = &Region{ID: id}
	s.order = append(s.order, id)
	return nil
}

// UpdateRegion replaces the region's content. Unknown ids are a no-op.
func (s *MemorySurface) UpdateRegion(id int, rendered string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.regions[id]; ok {
		r.Content = rendered
	}
	return nil
}

// FinalizeRegion marks the region settled. Unknown ids are a no-op.
func (s *MemorySurface) FinalizeRegion(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.regions[id]; ok {
		r.Finalized = true
	}
	return nil
}

// ClearAll removes every region.
func (s *MemorySurface) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.regions = nil
	return nil
}

// Regions returns a snapshot of all regions in creation order.
func (s *MemorySurface) Regions() []Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Region, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.regions[id])
	}
	return out
}

// Region returns a snapshot of one region.
func (s *MemorySurface) Region(id int) (Region, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.regions[id]; ok {
		return *r, true
	}
	return Region{}, false
}

// Len returns the number of mounted regions.
func (s *MemorySurface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
