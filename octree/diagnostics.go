package octree

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"go.viam.com/voxeltree/logging"
)

// LocValueString formats a location code as its binary code, its integer index and, if ctx is
// not nil, its real world coordinate, joined by "; ".
func LocValueString(loc NodeLoc, ctx *Context, showCode, showIndex, showVec bool) string {
	return strings.Join(locParts(
		func() string { return fmt.Sprintf("%016b", uint16(loc)) },
		func() string { return fmt.Sprintf("%d", loc) },
		func() string { return fmt.Sprintf("%g", ctx.Location(loc)) },
		ctx, showCode, showIndex, showVec), "; ")
}

// Loc3ValueString formats a location like LocValueString, each part listing x, y and z. Parts are
// parenthesized when more than one is shown.
func Loc3ValueString(l NodeLoc3, ctx *Context, showCode, showIndex, showVec bool) string {
	parts := locParts(
		func() string { return fmt.Sprintf("%016b, %016b, %016b", uint16(l.X), uint16(l.Y), uint16(l.Z)) },
		func() string { return fmt.Sprintf("%d, %d, %d", l.X, l.Y, l.Z) },
		func() string {
			v := ctx.Location3(l)
			return fmt.Sprintf("%g, %g, %g", v.X, v.Y, v.Z)
		},
		ctx, showCode, showIndex, showVec)
	if len(parts) > 1 {
		parts = lo.Map(parts, func(p string, _ int) string { return "(" + p + ")" })
	}
	return strings.Join(parts, "; ")
}

func locParts(code, index, vec func() string, ctx *Context, showCode, showIndex, showVec bool) []string {
	var parts []string
	if showCode {
		parts = append(parts, code())
	}
	if showIndex {
		parts = append(parts, index())
	}
	if showVec && ctx != nil && ctx.checkOpen() == nil {
		parts = append(parts, vec())
	}
	return parts
}

// NodeIDValueString formats a node identity as "depth; [location]".
func NodeIDValueString(id NodeID, ctx *Context, showCode, showIndex, showVec bool) string {
	depth := "<unspecified>"
	if id.Depth != DepthUnspecified {
		depth = fmt.Sprintf("%d", id.Depth)
	}
	return fmt.Sprintf("%s; [%s]", depth, Loc3ValueString(id.Loc, ctx, showCode, showIndex, showVec))
}

func (id NodeID) String() string {
	return NodeIDValueString(id, nil, false, true, false)
}

// HierarchyHeaderValueString formats every field of a header.
func HierarchyHeaderValueString(h HierarchyHeader) string {
	return fmt.Sprintf("poMapOffset = %s, implArrayStride = %d, implSize = %d, dataImplSize = %d, "+
		"dataValueSize = %d, rootNodeDepth = %d, rootNodePointer = %s",
		offsetString(h.PoMapOffset), h.ImplArrayStride, h.ImplSize, h.DataImplSize,
		h.DataValueSize, h.RootNodeDepth, offsetString(h.RootNodePointer))
}

// TriangleVoxelizationDataString formats the primitives of a voxelization setup.
func TriangleVoxelizationDataString(d *TriangleVoxelizationData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "voxelSize = %g, tri = [%v], plane = [n = %v], sep = %d, t = %g, r_c = %g, ",
		d.VoxelSize, d.Triangle, d.Normal, d.Separability, d.T, d.RC)
	fmt.Fprintf(&sb, "planeU = [%v], planeL = [%v], ", d.PlaneU, d.PlaneL)
	for i, p := range d.EdgePlanes {
		fmt.Fprintf(&sb, "edgePlane%d = [%v], ", i, p)
	}
	for i, c := range d.Edges {
		fmt.Fprintf(&sb, "edge%d = [%v], ", i, c)
	}
	for i, s := range d.Vertices {
		fmt.Fprintf(&sb, "vertex%d = [%v], ", i, s)
	}
	fmt.Fprintf(&sb, "node = [%s]", NodeIDValueString(d.Node, nil, false, true, false))
	return sb.String()
}

// DebugDump logs every node of the store at debug level.
func (s *Store) DebugDump(logger logging.Logger) error {
	logger.Debugw("store", "header", s.Header(), "nodes", s.numLive, "records", s.numRecords, "dataRecords", s.numData)
	return s.Walk(func(ref Ref, id NodeID) error {
		r := s.rec(ref)
		fields := []interface{}{
			"ref", ref,
			"id", NodeIDValueString(id, s.ctx, false, true, true),
			"children", fmt.Sprintf("%08b", recValid(r)),
			"type", recDataType(r),
		}
		switch recDataType(r) {
		case DataTypeDensity:
			d, err := s.Density(ref)
			if err != nil {
				return err
			}
			fields = append(fields, "density", d)
		case DataTypeVoxelClass:
			fields = append(fields, "class", UnpackVoxelClass(recPayload(r)))
		case DataTypeVoxelIOB:
			d, err := s.IOBData(ref)
			if err != nil {
				return err
			}
			fields = append(fields, "data", d.String())
		case DataTypeNull:
		}
		logger.Debugw("node", fields...)
		return nil
	})
}
