package phys

// MaxPhysicalAddress is the largest physical address the target
// architecture can express (56-bit physical address space).
const MaxPhysicalAddress = uint64(1)<<56 - 1

// Granularity is one supported page-size class. Each class keeps its own
// aligned-free cache in the manager.
type Granularity uint8

const (
	Size4K Granularity = iota
	Size2M
	Size1G
	Size512G
)

// Granularities returns every supported page-size class.
func Granularities() []Granularity {
	return []Granularity{Size4K, Size2M, Size1G, Size512G}
}

// Shift returns the page shift for the class. An unrecognized class is a
// fatal configuration defect.
func (g Granularity) Shift() uint {
	switch g {
	case Size4K:
		return 12
	case Size2M:
		return 21
	case Size1G:
		return 30
	case Size512G:
		return 39
	}
	fail("unrecognized_page_type", "unknown page granularity tag %d", uint8(g))
	return 0
}

// ByteSize returns the page size in bytes.
func (g Granularity) ByteSize() uint64 {
	return uint64(1) << g.Shift()
}

// Mask returns the low-bit mask for the class, e.g. 0xFFF for 4KiB pages.
func (g Granularity) Mask() uint64 {
	return g.ByteSize() - 1
}

func (g Granularity) String() string {
	switch g {
	case Size4K:
		return "4K"
	case Size2M:
		return "2M"
	case Size1G:
		return "1G"
	case Size512G:
		return "512G"
	}
	return "unknown"
}

// SizeInfo carries the page-size class and byte size of one allocation
// request and receives the resolved physical placement.
type SizeInfo struct {
	Type Granularity

	// Size is the requested backing size in bytes; 0 means one page of
	// Type. Larger sizes are rounded up to whole pages.
	Size uint64

	// Start is the resolved physical start address, set by a successful
	// carve or alias resolution.
	Start uint64

	// Page is the id of the backing physical page after a successful
	// allocation.
	Page PageID
}

// NewSizeInfo returns a SizeInfo for one page of the given class.
func NewSizeInfo(g Granularity) *SizeInfo {
	return &SizeInfo{Type: g}
}

// NewSizeInfoBytes returns a SizeInfo for size bytes backed by pages of the
// given class.
func NewSizeInfoBytes(g Granularity, size uint64) *SizeInfo {
	return &SizeInfo{Type: g, Size: size}
}

// ByteSize returns the requested size rounded up to whole pages.
func (si *SizeInfo) ByteSize() uint64 {
	pageSize := si.Type.ByteSize()
	if si.Size == 0 {
		return pageSize
	}
	return (si.Size + pageSize - 1) &^ si.Type.Mask()
}

// PageCount returns the number of pages backing the request.
func (si *SizeInfo) PageCount() uint64 {
	return si.ByteSize() >> si.Type.Shift()
}

// End returns the inclusive physical end address of the placed range.
func (si *SizeInfo) End() uint64 {
	return si.Start + si.ByteSize() - 1
}

// MaxPhysical returns the highest physical address available to the
// architecture for this request.
func (si *SizeInfo) MaxPhysical() uint64 {
	return MaxPhysicalAddress
}
