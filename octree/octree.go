// Package octree implements a sparse voxel octree kept in a flattened, offset addressed arena of
// fixed size records. Triangle meshes are voxelized into the tree and voxels are classified as
// inside, outside or boundary by casting ray grids through it and voting.
package octree

// Grid and voxelization constants.
const (
	// MaxNumLevels bounds the number of levels a Context may configure. Location codes are 16 bit.
	MaxNumLevels = 16
	// DefaultMaxNumLevels is used when a Config leaves the number of levels unset.
	DefaultMaxNumLevels = 10
	// DefaultOrder is the branching factor per axis. Only order 2 is supported.
	DefaultOrder = 2
	// DefaultScale is the real world size of the root node.
	DefaultScale = 1.0
	// DefaultTolerance is the distance below which two values are considered equal.
	DefaultTolerance = 1e-6

	// DepthUnspecified marks node identities that carry a location only.
	DepthUnspecified = -1

	// Separability6 and Separability26 select the thickness of a voxelized surface, following
	// Huang et al. 1998: 6-separating surfaces are thinner than 26-separating ones.
	Separability6  = 6
	Separability26 = 26

	DensityEmpty  = 0.0
	DensityFilled = 1.0
)

// NumChildren is the number of children of an internal node.
const NumChildren = DefaultOrder * DefaultOrder * DefaultOrder

// DataType tags the payload of a node record.
type DataType uint8

// Payload kinds. A node carries at most one of them.
const (
	DataTypeNull DataType = iota
	DataTypeDensity
	DataTypeVoxelClass
	DataTypeVoxelIOB
)

func (dt DataType) String() string {
	switch dt {
	case DataTypeNull:
		return "null"
	case DataTypeDensity:
		return "density"
	case DataTypeVoxelClass:
		return "voxel_class"
	case DataTypeVoxelIOB:
		return "voxel_iob"
	}
	return "unknown"
}

// LeafStatus selects nodes by whether they have children.
type LeafStatus uint8

// Leaf status filters.
const (
	LeafStatusAny LeafStatus = iota
	LeafStatusLeaf
	LeafStatusNonLeaf
)

// VoxelizationTarget selects what voxelization writes into the voxels it marks.
type VoxelizationTarget uint8

// Voxelization targets.
const (
	// TargetDensity writes DensityFilled.
	TargetDensity VoxelizationTarget = iota
	// TargetClass sets VoxelClassFilled, keeping any class bits already present.
	TargetClass
)
