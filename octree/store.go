package octree

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/voxeltree/logging"
)

// Ref is the handle of a node record: its index in the node array. Handles are checked against the
// array on every access.
type Ref uint32

// NoRef is the handle that refers to no record.
const NoRef = ^Ref(0)

// Node record layout, little endian:
//
//	0  x, y, z u16
//	6  depth u8
//	7  valid child mask u8
//	8  data type u8
//	9  flags u8
//	10 reserved u16
//	12 parent u32
//	16 first child u32
//	20 reserved u32
//	24 payload u64
//
// The children of a node occupy a block of NumChildren consecutive records starting at the first
// child, in child order index. Records of a block whose valid bit is clear in the parent are not
// nodes.
const (
	nodeRecordSize  = 32
	payloadSize     = 8
	recordFlagLive  = 1
	maxRecordStride = math.MaxUint16
)

type storeOptions struct {
	capacity int
	stride   int
	root     NodeID
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

// WithCapacity limits the number of node records. Zero means unlimited.
func WithCapacity(n int) StoreOption {
	return func(o *storeOptions) {
		o.capacity = n
	}
}

// WithRecordStride sets the distance between node records, which must be at least the record size.
func WithRecordStride(n int) StoreOption {
	return func(o *storeOptions) {
		o.stride = n
	}
}

// WithRoot roots the store at a node other than the grid root.
func WithRoot(id NodeID) StoreOption {
	return func(o *storeOptions) {
		o.root = id
	}
}

// Store is a sparse octree kept in two flat arrays: fixed stride node records and fixed size voxel
// data records. Nodes refer to each other by Ref, never by pointer, so the arrays can be written
// out and read back as they are. A Store is not safe for concurrent use.
type Store struct {
	ctx    *Context
	logger logging.Logger

	stride     int
	root       Ref
	nodes      []byte
	numRecords int
	numLive    int
	data       []byte
	numData    int
	capacity   int

	index map[uint64]Ref
}

// NewStore returns a store holding only its root node.
func NewStore(ctx *Context, logger logging.Logger, opts ...StoreOption) (*Store, error) {
	if err := ctx.checkOpen(); err != nil {
		return nil, err
	}
	o := storeOptions{stride: nodeRecordSize, root: NodeID{Depth: 0}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.stride < nodeRecordSize || o.stride > maxRecordStride {
		return nil, errors.Wrapf(ErrMalformedHeader, "record stride %d not in [%d, %d]", o.stride, nodeRecordSize, maxRecordStride)
	}
	if o.capacity < 0 {
		return nil, errors.Errorf("invalid capacity (%d) for store", o.capacity)
	}
	if err := ctx.CheckNodeID(o.root); err != nil {
		return nil, errors.Wrap(err, "invalid store root")
	}

	s := &Store{
		ctx:      ctx,
		logger:   logger,
		stride:   o.stride,
		capacity: o.capacity,
		index:    make(map[uint64]Ref),
	}
	root, err := s.allocRecords(1)
	if err != nil {
		return nil, err
	}
	s.root = root
	s.writeNode(root, o.root, NoRef)
	logger.Debugw("created store", "root", o.root, "stride", o.stride, "capacity", o.capacity)
	return s, nil
}

// Context returns the context the store was created with.
func (s *Store) Context() *Context {
	return s.ctx
}

// Root returns the handle of the root node.
func (s *Store) Root() Ref {
	return s.root
}

// RootID returns the identity of the root node.
func (s *Store) RootID() NodeID {
	return recID(s.rec(s.root))
}

// NumNodes returns the number of nodes.
func (s *Store) NumNodes() int {
	return s.numLive
}

// NumRecords returns the number of allocated node records, including unused records of child blocks.
func (s *Store) NumRecords() int {
	return s.numRecords
}

// NumDataRecords returns the number of allocated voxel data records.
func (s *Store) NumDataRecords() int {
	return s.numData
}

// Capacity returns the node record limit, zero if unlimited.
func (s *Store) Capacity() int {
	return s.capacity
}

// Grow raises the node record limit by n records. It has no effect on an unlimited store.
func (s *Store) Grow(n int) error {
	if n <= 0 {
		return errors.Errorf("cannot grow store by %d records", n)
	}
	if s.capacity > 0 {
		s.capacity += n
		s.logger.Debugw("grew store", "capacity", s.capacity)
	}
	return nil
}

func (s *Store) rec(ref Ref) []byte {
	off := int(ref) * s.stride
	return s.nodes[off : off+nodeRecordSize]
}

func (s *Store) checkRef(ref Ref) ([]byte, error) {
	if ref == NoRef || int(ref) >= s.numRecords {
		return nil, errors.Wrapf(ErrInvalidRef, "handle %d, %d records", ref, s.numRecords)
	}
	r := s.rec(ref)
	if r[9]&recordFlagLive == 0 {
		return nil, errors.Wrapf(ErrInvalidRef, "handle %d is not a node", ref)
	}
	return r, nil
}

func (s *Store) allocRecords(n int) (Ref, error) {
	if s.capacity > 0 && s.numRecords+n > s.capacity {
		return NoRef, errors.Wrapf(ErrCapacityExceeded, "need %d records, %d of %d used", n, s.numRecords, s.capacity)
	}
	if s.numRecords+n >= int(NoRef) {
		return NoRef, errors.Wrap(ErrCapacityExceeded, "handle space exhausted")
	}
	first := Ref(s.numRecords)
	s.nodes = append(s.nodes, make([]byte, n*s.stride)...)
	s.numRecords += n
	return first, nil
}

func (s *Store) allocData() (Ref, error) {
	if s.numData+1 >= int(NoRef) {
		return NoRef, errors.Wrap(ErrCapacityExceeded, "data handle space exhausted")
	}
	ref := Ref(s.numData)
	s.data = append(s.data, make([]byte, iobRecordSize)...)
	s.numData++
	return ref, nil
}

func (s *Store) dataRec(ref Ref) ([]byte, error) {
	if ref == NoRef || int(ref) >= s.numData {
		return nil, errors.Wrapf(ErrInvalidRef, "data handle %d, %d data records", ref, s.numData)
	}
	off := int(ref) * iobRecordSize
	return s.data[off : off+iobRecordSize], nil
}

func (s *Store) writeNode(ref Ref, id NodeID, parent Ref) {
	r := s.rec(ref)
	binary.LittleEndian.PutUint16(r[0:], uint16(id.Loc.X))
	binary.LittleEndian.PutUint16(r[2:], uint16(id.Loc.Y))
	binary.LittleEndian.PutUint16(r[4:], uint16(id.Loc.Z))
	r[6] = uint8(id.Depth)
	r[7] = 0
	r[8] = byte(DataTypeNull)
	r[9] = recordFlagLive
	binary.LittleEndian.PutUint32(r[12:], uint32(parent))
	binary.LittleEndian.PutUint32(r[16:], uint32(NoRef))
	binary.LittleEndian.PutUint64(r[24:], 0)
	s.index[id.Key()] = ref
	s.numLive++
}

func recID(r []byte) NodeID {
	return NodeID{
		Depth: int(r[6]),
		Loc: NodeLoc3{
			X: NodeLoc(binary.LittleEndian.Uint16(r[0:])),
			Y: NodeLoc(binary.LittleEndian.Uint16(r[2:])),
			Z: NodeLoc(binary.LittleEndian.Uint16(r[4:])),
		},
	}
}

func recValid(r []byte) uint8 {
	return r[7]
}

func recDataType(r []byte) DataType {
	return DataType(r[8])
}

func recParent(r []byte) Ref {
	return Ref(binary.LittleEndian.Uint32(r[12:]))
}

func recFirstChild(r []byte) Ref {
	return Ref(binary.LittleEndian.Uint32(r[16:]))
}

func recPayload(r []byte) NodeDataPointer {
	return NodeDataPointer(binary.LittleEndian.Uint64(r[24:]))
}

func setPayload(r []byte, dt DataType, p NodeDataPointer) {
	r[8] = byte(dt)
	binary.LittleEndian.PutUint64(r[24:], uint64(p))
}

// ID returns the identity of a node.
func (s *Store) ID(ref Ref) (NodeID, error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return NodeID{}, err
	}
	return recID(r), nil
}

// ValidMask returns the bit set of existing children, bit i for child order index i.
func (s *Store) ValidMask(ref Ref) (uint8, error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return 0, err
	}
	return recValid(r), nil
}

// IsLeaf returns whether a node has no children.
func (s *Store) IsLeaf(ref Ref) (bool, error) {
	m, err := s.ValidMask(ref)
	if err != nil {
		return false, err
	}
	return m == 0, nil
}

// Parent returns the parent of a node, NoRef for the root.
func (s *Store) Parent(ref Ref) (Ref, error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return NoRef, err
	}
	return recParent(r), nil
}

// Child returns child i of a node, or NoRef if it does not exist.
func (s *Store) Child(ref Ref, i int) (Ref, error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return NoRef, err
	}
	if i < 0 || i >= NumChildren {
		return NoRef, errors.Errorf("child order index %d out of range", i)
	}
	if recValid(r)&(1<<uint(i)) == 0 {
		return NoRef, nil
	}
	return recFirstChild(r) + Ref(i), nil
}

// Children returns the existing children of a node in child order.
func (s *Store) Children(ref Ref) ([]Ref, error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return nil, err
	}
	valid := recValid(r)
	if valid == 0 {
		return nil, nil
	}
	first := recFirstChild(r)
	children := make([]Ref, 0, NumChildren)
	for i := 0; i < NumChildren; i++ {
		if valid&(1<<uint(i)) != 0 {
			children = append(children, first+Ref(i))
		}
	}
	return children, nil
}

// Locate returns the handle of the node with identity id.
func (s *Store) Locate(id NodeID) (Ref, bool) {
	ref, ok := s.index[id.Key()]
	return ref, ok
}

// Insert returns the node with identity id, creating it and any missing ancestors. Either all
// needed records are available and the path is created, or ErrCapacityExceeded is returned and
// the store is unchanged.
func (s *Store) Insert(id NodeID) (Ref, error) {
	if ref, ok := s.Locate(id); ok {
		return ref, nil
	}
	if err := s.ctx.CheckNodeID(id); err != nil {
		return NoRef, err
	}
	rootID := s.RootID()
	if !s.ctx.Contains(rootID, id) {
		return NoRef, errors.Wrapf(ErrOutOfBounds, "node %v outside store root %v", id, rootID)
	}

	cur := s.root
	depth := rootID.Depth
	for depth < id.Depth {
		r := s.rec(cur)
		i := s.ctx.ChildOrderIndex(id.Loc, depth+1)
		if recValid(r)&(1<<uint(i)) == 0 {
			break
		}
		cur = recFirstChild(r) + Ref(i)
		depth++
	}

	blocks := 0
	if recFirstChild(s.rec(cur)) == NoRef {
		blocks++
	}
	blocks += id.Depth - depth - 1
	if s.capacity > 0 && s.numRecords+blocks*NumChildren > s.capacity {
		return NoRef, errors.Wrapf(ErrCapacityExceeded, "inserting %v needs %d records, %d of %d used",
			id, blocks*NumChildren, s.numRecords, s.capacity)
	}

	for depth < id.Depth {
		i := s.ctx.ChildOrderIndex(id.Loc, depth+1)
		child, err := s.createChild(cur, i)
		if err != nil {
			return NoRef, err
		}
		cur = child
		depth++
	}
	return cur, nil
}

func (s *Store) createChild(parent Ref, i int) (Ref, error) {
	first := recFirstChild(s.rec(parent))
	if first == NoRef {
		var err error
		if first, err = s.allocRecords(NumChildren); err != nil {
			return NoRef, err
		}
		// allocRecords may have moved the array.
		binary.LittleEndian.PutUint32(s.rec(parent)[16:], uint32(first))
	}
	parentID := recID(s.rec(parent))
	child := first + Ref(i)
	s.writeNode(child, s.ctx.ChildID(parentID, i), parent)
	s.rec(parent)[7] |= 1 << uint(i)
	return child, nil
}

// Fill creates every missing child of a node.
func (s *Store) Fill(ref Ref) error {
	r, err := s.checkRef(ref)
	if err != nil {
		return err
	}
	id := recID(r)
	if id.Depth >= s.ctx.MaxDepth() {
		return errors.Wrapf(ErrInvalidDepth, "cannot fill node %v at max depth", id)
	}
	if recValid(r) == 0xff {
		return nil
	}
	if recFirstChild(r) == NoRef && s.capacity > 0 && s.numRecords+NumChildren > s.capacity {
		return errors.Wrapf(ErrCapacityExceeded, "filling %v needs %d records, %d of %d used",
			id, NumChildren, s.numRecords, s.capacity)
	}
	for i := 0; i < NumChildren; i++ {
		if recValid(s.rec(ref))&(1<<uint(i)) != 0 {
			continue
		}
		if _, err := s.createChild(ref, i); err != nil {
			return err
		}
	}
	return nil
}

// DataType returns the payload kind of a node.
func (s *Store) DataType(ref Ref) (DataType, error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return DataTypeNull, err
	}
	return recDataType(r), nil
}

// Density returns the density of a node. Nodes without payload have density DensityEmpty.
func (s *Store) Density(ref Ref) (float64, error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return 0, err
	}
	switch dt := recDataType(r); dt {
	case DataTypeNull:
		return DensityEmpty, nil
	case DataTypeDensity:
		return math.Float64frombits(uint64(recPayload(r))), nil
	default:
		return 0, errors.Wrapf(ErrWrongDataType, "node %v holds %v", recID(r), dt)
	}
}

// SetDensity replaces the payload of a node with a density.
func (s *Store) SetDensity(ref Ref, v float64) error {
	r, err := s.checkRef(ref)
	if err != nil {
		return err
	}
	setPayload(r, DataTypeDensity, NodeDataPointer(math.Float64bits(v)))
	return nil
}

// VoxelClass returns the voxel class of a node. Nodes without payload are undefined.
func (s *Store) VoxelClass(ref Ref) (VoxelClass, error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return VoxelClassUndefined, err
	}
	switch dt := recDataType(r); dt {
	case DataTypeNull:
		return VoxelClassUndefined, nil
	case DataTypeVoxelClass:
		return UnpackVoxelClass(recPayload(r)), nil
	case DataTypeVoxelIOB:
		d, err := s.dataRec(Ref(recPayload(r)))
		if err != nil {
			return VoxelClassUndefined, err
		}
		return VoxelClass(d[0]), nil
	default:
		return VoxelClassUndefined, errors.Wrapf(ErrWrongDataType, "node %v holds %v", recID(r), dt)
	}
}

// SetVoxelClass sets the voxel class of a node. A node with voxel data keeps the rest of its
// record; any other payload is replaced by the packed class.
func (s *Store) SetVoxelClass(ref Ref, c VoxelClass) error {
	if err := ValidateVoxelClass(c); err != nil {
		return err
	}
	r, err := s.checkRef(ref)
	if err != nil {
		return err
	}
	if recDataType(r) == DataTypeVoxelIOB {
		d, err := s.dataRec(Ref(recPayload(r)))
		if err != nil {
			return err
		}
		d[0] = byte(c)
		return nil
	}
	setPayload(r, DataTypeVoxelClass, PackVoxelClass(c))
	return nil
}

// IOBData returns the voxel data of a node. Nodes holding only a class, or nothing, yield a new
// record carrying that class.
func (s *Store) IOBData(ref Ref) (VoxelDataIOB, error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return VoxelDataIOB{}, err
	}
	d := NewVoxelDataIOB()
	switch dt := recDataType(r); dt {
	case DataTypeNull:
		return d, nil
	case DataTypeVoxelClass:
		d.Class = UnpackVoxelClass(recPayload(r))
		return d, nil
	case DataTypeVoxelIOB:
		b, err := s.dataRec(Ref(recPayload(r)))
		if err != nil {
			return VoxelDataIOB{}, err
		}
		return decodeVoxelDataIOB(b), nil
	default:
		return VoxelDataIOB{}, errors.Wrapf(ErrWrongDataType, "node %v holds %v", recID(r), dt)
	}
}

// SetIOBData stores voxel data for a node, allocating a data record on first use.
func (s *Store) SetIOBData(ref Ref, d VoxelDataIOB) error {
	if err := ValidateVoxelClass(d.Class); err != nil {
		return err
	}
	if err := ValidateFaceMask(d.BoundaryFaces); err != nil {
		return err
	}
	r, err := s.checkRef(ref)
	if err != nil {
		return err
	}
	var dref Ref
	if recDataType(r) == DataTypeVoxelIOB {
		dref = Ref(recPayload(r))
	} else {
		if dref, err = s.allocData(); err != nil {
			return err
		}
		setPayload(r, DataTypeVoxelIOB, NodeDataPointer(dref))
	}
	b, err := s.dataRec(dref)
	if err != nil {
		return err
	}
	d.encode(b)
	return nil
}

// Walk calls fn for every node in breadth first order, children in child order. A non nil error
// from fn stops the walk and is returned.
func (s *Store) Walk(fn func(ref Ref, id NodeID) error) error {
	queue := []Ref{s.root}
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		r, err := s.checkRef(ref)
		if err != nil {
			return err
		}
		if err := fn(ref, recID(r)); err != nil {
			return err
		}
		valid := recValid(r)
		first := recFirstChild(r)
		for i := 0; i < NumChildren; i++ {
			if valid&(1<<uint(i)) != 0 {
				queue = append(queue, first+Ref(i))
			}
		}
	}
	return nil
}

// Nodes returns the nodes matching filter in breadth first order.
func (s *Store) Nodes(filter NodeFilter) ([]Ref, error) {
	var refs []Ref
	err := s.Walk(func(ref Ref, _ NodeID) error {
		ok, err := filter.Match(s, ref)
		if err != nil {
			return err
		}
		if ok {
			refs = append(refs, ref)
		}
		return nil
	})
	return refs, err
}

// Header returns the header describing the node array. The pointer map offset is only known once
// the store is serialized and is InvalidOffset here.
func (s *Store) Header() HierarchyHeader {
	return HierarchyHeader{
		PoMapOffset:     InvalidOffset,
		ImplArrayStride: uint16(s.stride),
		ImplSize:        nodeRecordSize,
		DataImplSize:    iobRecordSize,
		DataValueSize:   payloadSize,
		RootNodeDepth:   uint8(s.RootID().Depth),
		RootNodePointer: uint64(s.root) * uint64(s.stride),
	}
}

// ConvertToIOB gives a node a voxel data record, carrying over its voxel class, and returns it.
func (s *Store) ConvertToIOB(ref Ref) (VoxelDataIOB, error) {
	d, err := s.IOBData(ref)
	if err != nil {
		return VoxelDataIOB{}, err
	}
	if err := s.SetIOBData(ref, d); err != nil {
		return VoxelDataIOB{}, err
	}
	return d, nil
}

// Leaves returns the leaves at depth in breadth first order.
func (s *Store) Leaves(depth int) ([]Ref, error) {
	if err := s.ctx.CheckDepth(depth); err != nil {
		return nil, err
	}
	return s.Nodes(LeavesAt(depth))
}
