package octree

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// InvalidOffset marks an offset field of a HierarchyHeader that does not point anywhere.
const InvalidOffset = ^uint64(0)

// HierarchyHeader describes a flattened array of node records. Offsets are byte offsets relative
// to the start of the node array.
type HierarchyHeader struct {
	// PoMapOffset is the offset of the pointer map, or InvalidOffset if none was written.
	PoMapOffset uint64
	// ImplArrayStride is the distance between consecutive node records.
	ImplArrayStride uint16
	// ImplSize is the number of bytes used by a node record.
	ImplSize uint16
	// DataImplSize is the size of a payload data record.
	DataImplSize uint16
	// DataValueSize is the size of the payload slot inside a node record.
	DataValueSize uint8
	RootNodeDepth uint8
	// RootNodePointer is the offset of the root record.
	RootNodePointer uint64
}

// hierarchyHeaderSize is the encoded size of a header.
const hierarchyHeaderSize = 8 + 2 + 2 + 2 + 1 + 1 + 8

// CreateHierarchyHeader builds a header and checks the constraints that do not depend on the array
// length: a non zero stride no smaller than the record size, and a record size no smaller than the
// node record footprint.
func CreateHierarchyHeader(
	poMapOffset uint64,
	implArrayStride, implSize, dataImplSize uint16,
	dataValueSize, rootNodeDepth uint8,
	rootNodePointer uint64,
) (HierarchyHeader, error) {
	h := HierarchyHeader{
		PoMapOffset:     poMapOffset,
		ImplArrayStride: implArrayStride,
		ImplSize:        implSize,
		DataImplSize:    dataImplSize,
		DataValueSize:   dataValueSize,
		RootNodeDepth:   rootNodeDepth,
		RootNodePointer: rootNodePointer,
	}
	if err := h.checkLayout(); err != nil {
		return HierarchyHeader{}, err
	}
	return h, nil
}

func (h HierarchyHeader) checkLayout() error {
	if h.ImplArrayStride == 0 {
		return errors.Wrap(ErrMalformedHeader, "zero record stride")
	}
	if h.ImplSize < nodeRecordSize {
		return errors.Wrapf(ErrMalformedHeader, "record size %d below minimum %d", h.ImplSize, nodeRecordSize)
	}
	if h.ImplArrayStride < h.ImplSize {
		return errors.Wrapf(ErrMalformedHeader, "stride %d smaller than record size %d", h.ImplArrayStride, h.ImplSize)
	}
	if h.DataValueSize > 8 {
		return errors.Wrapf(ErrMalformedHeader, "data value size %d exceeds the payload slot", h.DataValueSize)
	}
	return nil
}

// Validate checks the header against a node array of arrayLen bytes: the root record and the
// pointer map must lie within bounds and the root must sit on a record boundary.
func (h HierarchyHeader) Validate(arrayLen uint64) error {
	if err := h.checkLayout(); err != nil {
		return err
	}
	if arrayLen%uint64(h.ImplArrayStride) != 0 {
		return errors.Wrapf(ErrMalformedHeader, "array length %d is not a multiple of stride %d", arrayLen, h.ImplArrayStride)
	}
	if h.RootNodePointer == InvalidOffset {
		return errors.Wrap(ErrMalformedHeader, "invalid root pointer")
	}
	if h.RootNodePointer%uint64(h.ImplArrayStride) != 0 || h.RootNodePointer+uint64(h.ImplSize) > arrayLen {
		return errors.Wrapf(ErrMalformedHeader, "root pointer %d out of range for array of %d bytes", h.RootNodePointer, arrayLen)
	}
	if h.PoMapOffset != InvalidOffset && h.PoMapOffset < arrayLen {
		return errors.Wrapf(ErrMalformedHeader, "pointer map offset %d overlaps node array of %d bytes", h.PoMapOffset, arrayLen)
	}
	return nil
}

// RootRef returns the handle of the root record.
func (h HierarchyHeader) RootRef() (Ref, error) {
	if h.ImplArrayStride == 0 || h.RootNodePointer == InvalidOffset {
		return NoRef, errors.Wrap(ErrMalformedHeader, "no root record")
	}
	return Ref(h.RootNodePointer / uint64(h.ImplArrayStride)), nil
}

// RecordOffset returns the byte offset of the record with handle ref.
func (h HierarchyHeader) RecordOffset(ref Ref) uint64 {
	return uint64(ref) * uint64(h.ImplArrayStride)
}

func (h HierarchyHeader) String() string {
	return HierarchyHeaderValueString(h)
}

func offsetString(off uint64) string {
	if off == InvalidOffset {
		return "<invalid>"
	}
	return fmt.Sprintf("%d", off)
}

// encode writes the header fields in their documented order.
func (h HierarchyHeader) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:], h.PoMapOffset)
	binary.LittleEndian.PutUint16(b[8:], h.ImplArrayStride)
	binary.LittleEndian.PutUint16(b[10:], h.ImplSize)
	binary.LittleEndian.PutUint16(b[12:], h.DataImplSize)
	b[14] = h.DataValueSize
	b[15] = h.RootNodeDepth
	binary.LittleEndian.PutUint64(b[16:], h.RootNodePointer)
}

func decodeHierarchyHeader(b []byte) HierarchyHeader {
	return HierarchyHeader{
		PoMapOffset:     binary.LittleEndian.Uint64(b[0:]),
		ImplArrayStride: binary.LittleEndian.Uint16(b[8:]),
		ImplSize:        binary.LittleEndian.Uint16(b[10:]),
		DataImplSize:    binary.LittleEndian.Uint16(b[12:]),
		DataValueSize:   b[14],
		RootNodeDepth:   b[15],
		RootNodePointer: binary.LittleEndian.Uint64(b[16:]),
	}
}
