package octree

import (
	"math/bits"
	"strings"

	"github.com/pkg/errors"
)

// VoxelClass is a set of classification flags. Several flags may be set at once, for example
// VoxelClassFilled|VoxelClassBoundary.
type VoxelClass uint8

// Voxel class flags.
const (
	VoxelClassUndefined VoxelClass = 0
	VoxelClassEmpty     VoxelClass = 1 << (iota - 1)
	VoxelClassFilled
	VoxelClassInside
	VoxelClassOutside
	VoxelClassBoundary
	VoxelClassHit

	voxelClassAll = VoxelClassEmpty | VoxelClassFilled | VoxelClassInside |
		VoxelClassOutside | VoxelClassBoundary | VoxelClassHit
)

var voxelClassNames = []struct {
	c    VoxelClass
	name string
}{
	{VoxelClassEmpty, "empty"},
	{VoxelClassFilled, "filled"},
	{VoxelClassInside, "inside"},
	{VoxelClassOutside, "outside"},
	{VoxelClassBoundary, "boundary"},
	{VoxelClassHit, "hit"},
}

// Valid returns whether only defined flags are set.
func (c VoxelClass) Valid() bool {
	return c&^voxelClassAll == 0
}

// Has returns whether every flag of mask is set in c. VoxelClassUndefined as mask matches only an
// undefined class.
func (c VoxelClass) Has(mask VoxelClass) bool {
	if mask == VoxelClassUndefined {
		return c == VoxelClassUndefined
	}
	return c&mask == mask
}

// HasAny returns whether at least one flag of mask is set in c.
func (c VoxelClass) HasAny(mask VoxelClass) bool {
	return c&mask != 0
}

// With returns c with the flags of flag set or cleared.
func (c VoxelClass) With(flag VoxelClass, enable bool) VoxelClass {
	if enable {
		return c | flag
	}
	return c &^ flag
}

// NumSet returns the number of flags set.
func (c VoxelClass) NumSet() int {
	return bits.OnesCount8(uint8(c & voxelClassAll))
}

// String lists the set flags separated by commas, for example "filled,boundary".
func (c VoxelClass) String() string {
	if c == VoxelClassUndefined {
		return "undefined"
	}
	var parts []string
	for _, n := range voxelClassNames {
		if c&n.c != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "<unknown>"
	}
	return strings.Join(parts, ",")
}

// ValidateVoxelClass returns ErrUnknownVoxelClass if c has undefined bits.
func ValidateVoxelClass(c VoxelClass) error {
	if !c.Valid() {
		return errors.Wrapf(ErrUnknownVoxelClass, "voxel class %#x", uint8(c))
	}
	return nil
}

// SetVoxelClass sets or clears the flags of flag in target. target is left unchanged if flag has
// undefined bits.
func SetVoxelClass(flag VoxelClass, target *VoxelClass, enable bool) error {
	if err := ValidateVoxelClass(flag); err != nil {
		return err
	}
	*target = target.With(flag, enable)
	return nil
}

// CheckVoxelClass returns whether every flag of mask is present in source.
func CheckVoxelClass(source, mask VoxelClass) bool {
	return source.Has(mask)
}

// NodeDataPointer is the 8 byte payload slot of a node record. It holds a density, a packed voxel
// class or the handle of a data record, as tagged by the node's DataType.
type NodeDataPointer uint64

// PackVoxelClass stores a voxel class in a payload slot.
func PackVoxelClass(c VoxelClass) NodeDataPointer {
	return NodeDataPointer(c)
}

// UnpackVoxelClass reads a voxel class stored with PackVoxelClass.
func UnpackVoxelClass(p NodeDataPointer) VoxelClass {
	return VoxelClass(p & 0xff)
}
