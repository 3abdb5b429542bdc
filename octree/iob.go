package octree

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/voxeltree/spatialmath"
)

// ColorIndex selects a color from an external palette.
type ColorIndex int16

// ColorIndexUnspecified means no color is assigned.
const ColorIndexUnspecified ColorIndex = -1

// VoxelDataIOB is the inside/outside/boundary record of a voxel.
type VoxelDataIOB struct {
	Class VoxelClass
	// NumInts0 and NumInts1 count the boundary crossings before the voxel along the last ray,
	// in forward and backward direction.
	NumInts0      uint16
	NumInts1      uint16
	VotesInside   uint16
	VotesOutside  uint16
	BoundaryFaces FaceMask
	// WallThickness is indexed by axis, in units of the smallest leaves. Zero means not recorded.
	WallThickness [3]uint16
	Color         ColorIndex
}

// NewVoxelDataIOB returns an undefined record without color.
func NewVoxelDataIOB() VoxelDataIOB {
	return VoxelDataIOB{Color: ColorIndexUnspecified}
}

// CastVote adds an inside or outside vote. A full counter is reported as ErrVoteOverflow and left
// unchanged.
func (d *VoxelDataIOB) CastVote(inside bool) error {
	counter := &d.VotesOutside
	if inside {
		counter = &d.VotesInside
	}
	if *counter == math.MaxUint16 {
		return errors.Wrapf(ErrVoteOverflow, "inside = %t", inside)
	}
	*counter++
	return nil
}

// NumVotes returns the total number of votes.
func (d VoxelDataIOB) NumVotes() int {
	return int(d.VotesInside) + int(d.VotesOutside)
}

// SetWallThickness records the wall thickness along axis.
func (d *VoxelDataIOB) SetWallThickness(axis spatialmath.Axis, v uint16) error {
	if !axis.Valid() {
		return errors.Wrapf(ErrInvalidAxis, "axis %v", axis)
	}
	d.WallThickness[axis] = v
	return nil
}

// GetWallThickness returns the wall thickness along axis, or ErrNoWallThickness if no boundary
// crossing was recorded on that axis.
func (d VoxelDataIOB) GetWallThickness(axis spatialmath.Axis) (uint16, error) {
	if !axis.Valid() {
		return 0, errors.Wrapf(ErrInvalidAxis, "axis %v", axis)
	}
	if d.WallThickness[axis] == 0 {
		return 0, errors.Wrapf(ErrNoWallThickness, "%v axis", axis)
	}
	return d.WallThickness[axis], nil
}

// GetWallThicknessMin returns the smallest recorded wall thickness and its axis. The first axis
// wins ties.
func (d VoxelDataIOB) GetWallThicknessMin() (uint16, spatialmath.Axis, error) {
	best := spatialmath.AxisUndefined
	var bestValue uint16
	for _, a := range spatialmath.Axes {
		v := d.WallThickness[a]
		if v == 0 {
			continue
		}
		if best == spatialmath.AxisUndefined || v < bestValue {
			best = a
			bestValue = v
		}
	}
	if best == spatialmath.AxisUndefined {
		return 0, best, ErrNoWallThickness
	}
	return bestValue, best, nil
}

func (d VoxelDataIOB) String() string {
	return fmt.Sprintf("voxelClass = %v, numInts0 = %d, numInts1 = %d, votesInside = %d, votesOutside = %d, "+
		"boundaryFaces = %v, wallThicknessX = %d, wallThicknessY = %d, wallThicknessZ = %d, color = %d",
		d.Class, d.NumInts0, d.NumInts1, d.VotesInside, d.VotesOutside,
		d.BoundaryFaces, d.WallThickness[0], d.WallThickness[1], d.WallThickness[2], d.Color)
}

// SetIOBDataWallThickness records the wall thickness of d along axis.
func SetIOBDataWallThickness(d *VoxelDataIOB, axis spatialmath.Axis, v uint16) error {
	return d.SetWallThickness(axis, v)
}

// GetIOBDataWallThickness returns the wall thickness of d along axis.
func GetIOBDataWallThickness(d VoxelDataIOB, axis spatialmath.Axis) (uint16, error) {
	return d.GetWallThickness(axis)
}

// GetIOBDataWallThicknessMin returns the smallest wall thickness of d and its axis.
func GetIOBDataWallThicknessMin(d VoxelDataIOB) (uint16, spatialmath.Axis, error) {
	return d.GetWallThicknessMin()
}

// Data record layout, little endian:
//
//	0  class u8
//	1  boundary faces u8
//	2  numInts0 u16
//	4  numInts1 u16
//	6  votes inside u16
//	8  votes outside u16
//	10 wall thickness x, y, z u16
//	16 color i16
//	18 reserved
const iobRecordSize = 24

func (d VoxelDataIOB) encode(b []byte) {
	b[0] = byte(d.Class)
	b[1] = byte(d.BoundaryFaces)
	binary.LittleEndian.PutUint16(b[2:], d.NumInts0)
	binary.LittleEndian.PutUint16(b[4:], d.NumInts1)
	binary.LittleEndian.PutUint16(b[6:], d.VotesInside)
	binary.LittleEndian.PutUint16(b[8:], d.VotesOutside)
	binary.LittleEndian.PutUint16(b[10:], d.WallThickness[0])
	binary.LittleEndian.PutUint16(b[12:], d.WallThickness[1])
	binary.LittleEndian.PutUint16(b[14:], d.WallThickness[2])
	binary.LittleEndian.PutUint16(b[16:], uint16(d.Color))
	clear(b[18:iobRecordSize])
}

func decodeVoxelDataIOB(b []byte) VoxelDataIOB {
	return VoxelDataIOB{
		Class:         VoxelClass(b[0]),
		BoundaryFaces: FaceMask(b[1]),
		NumInts0:      binary.LittleEndian.Uint16(b[2:]),
		NumInts1:      binary.LittleEndian.Uint16(b[4:]),
		VotesInside:   binary.LittleEndian.Uint16(b[6:]),
		VotesOutside:  binary.LittleEndian.Uint16(b[8:]),
		WallThickness: [3]uint16{
			binary.LittleEndian.Uint16(b[10:]),
			binary.LittleEndian.Uint16(b[12:]),
			binary.LittleEndian.Uint16(b[14:]),
		},
		Color: ColorIndex(binary.LittleEndian.Uint16(b[16:])),
	}
}
