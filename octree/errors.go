package octree

import "github.com/pkg/errors"

// Errors returned by the octree package. Callers match them with errors.Is.
var (
	// ErrInvalidRegion is returned for regions whose min exceeds their max.
	ErrInvalidRegion = errors.New("invalid region")
	// ErrOutOfBounds is returned for coordinates or codes outside the grid.
	ErrOutOfBounds = errors.New("location out of bounds")
	// ErrInvalidDepth is returned for depths outside the configured levels.
	ErrInvalidDepth = errors.New("invalid depth")
	// ErrInvalidRef is returned for handles that do not address a record of the arena.
	ErrInvalidRef = errors.New("invalid node reference")
	// ErrNotFound is returned when a node identity is not present in a store.
	ErrNotFound = errors.New("node not found")
	// ErrCapacityExceeded is returned when an insertion needs more records than the store allows.
	// The store is unchanged and the caller may Grow and retry.
	ErrCapacityExceeded = errors.New("node capacity exceeded")
	// ErrMalformedHeader is returned for hierarchy headers that cannot describe a valid array.
	ErrMalformedHeader = errors.New("malformed hierarchy header")
	// ErrChecksumMismatch is returned when a persisted hierarchy fails verification.
	ErrChecksumMismatch = errors.New("hierarchy checksum mismatch")
	// ErrWrongDataType is returned when a node payload is read as the wrong type.
	ErrWrongDataType = errors.New("wrong node data type")
	// ErrNoWallThickness is returned when no wall thickness was recorded on an axis.
	ErrNoWallThickness = errors.New("no wall thickness recorded")
	// ErrVoteOverflow is returned when a vote counter cannot be incremented.
	ErrVoteOverflow = errors.New("vote counter overflow")
	// ErrUnknownVoxelClass is returned for voxel class values with undefined bits.
	ErrUnknownVoxelClass = errors.New("unknown voxel class bits")
	// ErrUnknownFaceMask is returned for face masks with undefined bits.
	ErrUnknownFaceMask = errors.New("unknown face mask bits")
	// ErrInvalidAxis is returned for axes other than x, y and z.
	ErrInvalidAxis = errors.New("invalid axis")
	// ErrDegenerateTriangle is returned for triangles whose vertices are collinear.
	ErrDegenerateTriangle = errors.New("degenerate triangle")
	// ErrContextClosed is returned when a closed context is used.
	ErrContextClosed = errors.New("context is closed")
)
