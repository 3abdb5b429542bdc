package octree

import (
	"math/bits"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/voxeltree/spatialmath"
)

// FaceMask is a set of the six faces of a voxel.
type FaceMask uint8

// Face bits. They share their values with spatialmath.BoxFaces.
const (
	FaceNone FaceMask = 0
	FaceX0   FaceMask = FaceMask(spatialmath.BoxFaceX0)
	FaceX1   FaceMask = FaceMask(spatialmath.BoxFaceX1)
	FaceY0   FaceMask = FaceMask(spatialmath.BoxFaceY0)
	FaceY1   FaceMask = FaceMask(spatialmath.BoxFaceY1)
	FaceZ0   FaceMask = FaceMask(spatialmath.BoxFaceZ0)
	FaceZ1   FaceMask = FaceMask(spatialmath.BoxFaceZ1)
	FaceAll  FaceMask = FaceX0 | FaceX1 | FaceY0 | FaceY1 | FaceZ0 | FaceZ1
)

var faceNames = [6]string{"x0", "x1", "y0", "y1", "z0", "z1"}

// FaceMaskFromBoxFaces converts the faces reported by a box intersection.
func FaceMaskFromBoxFaces(f spatialmath.BoxFaces) FaceMask {
	return FaceMask(f) & FaceAll
}

// Valid returns whether only the six face bits are set.
func (m FaceMask) Valid() bool {
	return m&^FaceAll == 0
}

// Has returns whether every face of mask is set in m. FaceNone as mask matches only an empty mask.
func (m FaceMask) Has(mask FaceMask) bool {
	if mask == FaceNone {
		return m == FaceNone
	}
	return m&mask == mask
}

// NumSet returns the number of faces set.
func (m FaceMask) NumSet() int {
	return bits.OnesCount8(uint8(m & FaceAll))
}

// String lists the set faces, for example "x0,z1", or "none".
func (m FaceMask) String() string {
	if m&FaceAll == FaceNone {
		return "none"
	}
	var parts []string
	for i, name := range faceNames {
		if m&(1<<uint(i)) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ",")
}

// ValidateFaceMask returns ErrUnknownFaceMask if m has bits beyond the six faces.
func ValidateFaceMask(m FaceMask) error {
	if !m.Valid() {
		return errors.Wrapf(ErrUnknownFaceMask, "face mask %#x", uint8(m))
	}
	return nil
}

// CheckFaceMask returns whether every face of mask is present in source.
func CheckFaceMask(source, mask FaceMask) bool {
	return source.Has(mask)
}

// GetNumFacesSet returns the number of faces set in m.
func GetNumFacesSet(m FaceMask) int {
	return m.NumSet()
}
