package octree

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/voxeltree/logging"
)

// Persisted hierarchy layout, little endian:
//
//	magic "VGHD" | version u16 | flags u16
//	header (hierarchyHeaderSize bytes, fields in declaration order)
//	maxNumLevels u16 | reserved u16 | scale f64
//	numRecords u32 | numData u32 | numLive u32 | capacity u32
//	node records (numRecords * stride bytes)
//	data records (numData * dataImplSize bytes)
//	pointer map: count u32, then per node depth u8 | x, y, z u16 | record offset u64
//	xxhash64 of everything above
//
// Offsets in the header and pointer map are relative to the first node record. The pointer map
// starts at PoMapOffset. The whole stream may be wrapped in a zstd frame.
const (
	hierarchyMagic   = "VGHD"
	hierarchyVersion = 1

	prefixSize       = 4 + 2 + 2
	gridBlockSize    = 2 + 2 + 8
	countsBlockSize  = 4 * 4
	poMapEntrySize   = 1 + 3*2 + 8
	checksumSize     = 8
	hierarchyPreface = prefixSize + hierarchyHeaderSize + gridBlockSize + countsBlockSize
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// SerializeOptions controls WriteHierarchy.
type SerializeOptions struct {
	// Compress wraps the output in a zstd frame.
	Compress bool
}

// WriteHierarchy writes the store's records, its header and a pointer map of every node.
func WriteHierarchy(w io.Writer, s *Store, opts SerializeOptions) (err error) {
	nodesLen := uint64(s.numRecords) * uint64(s.stride)
	dataLen := uint64(s.numData) * iobRecordSize
	h := s.Header()
	h.PoMapOffset = nodesLen + dataLen
	if err := h.Validate(nodesLen); err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.Grow(hierarchyPreface + int(h.PoMapOffset) + 4 + s.numLive*poMapEntrySize + checksumSize)
	var scratch [hierarchyHeaderSize]byte

	buf.WriteString(hierarchyMagic)
	writeU16(&buf, hierarchyVersion)
	writeU16(&buf, 0)
	h.encode(scratch[:])
	buf.Write(scratch[:])

	writeU16(&buf, uint16(s.ctx.MaxNumLevels()))
	writeU16(&buf, 0)
	writeU64(&buf, math.Float64bits(s.ctx.Scale()))
	writeU32(&buf, uint32(s.numRecords))
	writeU32(&buf, uint32(s.numData))
	writeU32(&buf, uint32(s.numLive))
	writeU32(&buf, uint32(s.capacity))

	buf.Write(s.nodes[:nodesLen])
	buf.Write(s.data[:dataLen])

	writeU32(&buf, uint32(s.numLive))
	if err := s.Walk(func(ref Ref, id NodeID) error {
		buf.WriteByte(uint8(id.Depth))
		writeU16(&buf, uint16(id.Loc.X))
		writeU16(&buf, uint16(id.Loc.Y))
		writeU16(&buf, uint16(id.Loc.Z))
		writeU64(&buf, h.RecordOffset(ref))
		return nil
	}); err != nil {
		return err
	}
	writeU64(&buf, xxhash.Sum64(buf.Bytes()))

	s.logger.Debugw("writing hierarchy", "bytes", buf.Len(), "nodes", s.numLive, "compress", opts.Compress)
	if !opts.Compress {
		_, err := w.Write(buf.Bytes())
		return errors.Wrap(err, "cannot write hierarchy")
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return errors.Wrap(err, "cannot create zstd writer")
	}
	defer func() {
		err = multierr.Combine(err, enc.Close())
	}()
	_, err = enc.Write(buf.Bytes())
	return errors.Wrap(err, "cannot write compressed hierarchy")
}

// ReadHierarchy reads a hierarchy written by WriteHierarchy into a new store using ctx, which
// must describe the same grid. Every offset and handle is checked before the store is returned.
func ReadHierarchy(r io.Reader, ctx *Context, logger logging.Logger) (*Store, error) {
	if err := ctx.checkOpen(); err != nil {
		return nil, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read hierarchy")
	}
	if bytes.HasPrefix(b, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "cannot create zstd reader")
		}
		b, err = dec.DecodeAll(b, nil)
		dec.Close()
		if err != nil {
			return nil, errors.Wrap(err, "cannot decompress hierarchy")
		}
	}

	if len(b) < hierarchyPreface+4+checksumSize {
		return nil, errors.Wrapf(ErrMalformedHeader, "hierarchy of %d bytes is truncated", len(b))
	}
	body := b[:len(b)-checksumSize]
	if got, want := xxhash.Sum64(body), binary.LittleEndian.Uint64(b[len(body):]); got != want {
		return nil, errors.Wrapf(ErrChecksumMismatch, "computed %#x, stored %#x", got, want)
	}
	if string(body[:4]) != hierarchyMagic {
		return nil, errors.Wrapf(ErrMalformedHeader, "bad magic %q", body[:4])
	}
	if v := binary.LittleEndian.Uint16(body[4:]); v != hierarchyVersion {
		return nil, errors.Wrapf(ErrMalformedHeader, "unsupported version %d", v)
	}
	off := prefixSize
	h := decodeHierarchyHeader(body[off:])
	off += hierarchyHeaderSize

	levels := int(binary.LittleEndian.Uint16(body[off:]))
	scale := math.Float64frombits(binary.LittleEndian.Uint64(body[off+4:]))
	off += gridBlockSize
	if levels != ctx.MaxNumLevels() || scale != ctx.Scale() {
		return nil, errors.Wrapf(ErrMalformedHeader, "hierarchy grid (%d levels, scale %g) does not match %v",
			levels, scale, ctx)
	}

	numRecords := int(binary.LittleEndian.Uint32(body[off:]))
	numData := int(binary.LittleEndian.Uint32(body[off+4:]))
	numLive := int(binary.LittleEndian.Uint32(body[off+8:]))
	capacity := int(binary.LittleEndian.Uint32(body[off+12:]))
	off += countsBlockSize

	if h.ImplSize != nodeRecordSize || h.DataImplSize != iobRecordSize || h.DataValueSize != payloadSize {
		return nil, errors.Wrapf(ErrMalformedHeader, "unsupported record layout: %v", h)
	}
	nodesLen := uint64(numRecords) * uint64(h.ImplArrayStride)
	dataLen := uint64(numData) * iobRecordSize
	if err := h.Validate(nodesLen); err != nil {
		return nil, err
	}
	if h.PoMapOffset != nodesLen+dataLen {
		return nil, errors.Wrapf(ErrMalformedHeader, "pointer map offset %s, expected %d",
			offsetString(h.PoMapOffset), nodesLen+dataLen)
	}
	if uint64(len(body)-off) < h.PoMapOffset+4 {
		return nil, errors.Wrapf(ErrMalformedHeader, "record arrays exceed the %d byte stream", len(body))
	}

	s := &Store{
		ctx:        ctx,
		logger:     logger,
		stride:     int(h.ImplArrayStride),
		nodes:      bytes.Clone(body[off : off+int(nodesLen)]),
		numRecords: numRecords,
		data:       bytes.Clone(body[off+int(nodesLen) : off+int(nodesLen+dataLen)]),
		numData:    numData,
		capacity:   capacity,
		index:      make(map[uint64]Ref, numLive),
	}
	if s.root, err = h.RootRef(); err != nil {
		return nil, err
	}

	poMap := body[off+int(h.PoMapOffset):]
	count := int(binary.LittleEndian.Uint32(poMap))
	poMap = poMap[4:]
	if count != numLive || len(poMap) != count*poMapEntrySize {
		return nil, errors.Wrapf(ErrMalformedHeader, "pointer map holds %d entries in %d bytes, expected %d nodes",
			count, len(poMap), numLive)
	}
	for i := 0; i < count; i++ {
		e := poMap[i*poMapEntrySize:]
		id := NodeID{
			Depth: int(e[0]),
			Loc: NodeLoc3{
				X: NodeLoc(binary.LittleEndian.Uint16(e[1:])),
				Y: NodeLoc(binary.LittleEndian.Uint16(e[3:])),
				Z: NodeLoc(binary.LittleEndian.Uint16(e[5:])),
			},
		}
		recOff := binary.LittleEndian.Uint64(e[7:])
		if recOff%uint64(s.stride) != 0 || recOff >= nodesLen {
			return nil, errors.Wrapf(ErrMalformedHeader, "pointer map offset %d of %v out of range", recOff, id)
		}
		ref := Ref(recOff / uint64(s.stride))
		if err := s.checkRecord(ref, id); err != nil {
			return nil, err
		}
		s.index[id.Key()] = ref
		s.numLive++
	}
	if len(s.index) != numLive {
		return nil, errors.Wrap(ErrMalformedHeader, "pointer map lists a node twice")
	}
	live := 0
	for ref := 0; ref < numRecords; ref++ {
		if s.rec(Ref(ref))[9]&recordFlagLive != 0 {
			live++
		}
	}
	if live != numLive {
		return nil, errors.Wrapf(ErrMalformedHeader, "%d live records, pointer map lists %d", live, numLive)
	}
	rootID := s.RootID()
	if _, ok := s.index[rootID.Key()]; !ok || recParent(s.rec(s.root)) != NoRef || rootID.Depth != int(h.RootNodeDepth) {
		return nil, errors.Wrap(ErrMalformedHeader, "root record is not a listed root node")
	}
	logger.Debugw("read hierarchy", "header", h, "nodes", s.numLive, "records", s.numRecords)
	return s, nil
}

// checkRecord verifies a live record against the identity the pointer map gives it and checks
// that its child block, parent and payload handles stay inside the arrays. Every valid child must
// link back to the record and sit in the slot its location selects.
func (s *Store) checkRecord(ref Ref, id NodeID) error {
	if err := s.ctx.CheckNodeID(id); err != nil {
		return errors.Wrapf(ErrMalformedHeader, "pointer map entry: %v", err)
	}
	r := s.rec(ref)
	if r[9]&recordFlagLive == 0 || !recID(r).Equal(id) {
		return errors.Wrapf(ErrMalformedHeader, "record %d does not hold node %v", ref, id)
	}
	valid, first := recValid(r), recFirstChild(r)
	if valid != 0 {
		if first == NoRef || int(first)+NumChildren > s.numRecords {
			return errors.Wrapf(ErrMalformedHeader, "child block %d of %v out of range", first, id)
		}
		for i := 0; i < NumChildren; i++ {
			if valid&(1<<uint(i)) == 0 {
				continue
			}
			c := s.rec(first + Ref(i))
			if c[9]&recordFlagLive == 0 || recParent(c) != ref {
				return errors.Wrapf(ErrMalformedHeader, "child %d of %v is not linked", i, id)
			}
			if want := s.ctx.ChildID(id, i); !recID(c).Equal(want) {
				return errors.Wrapf(ErrMalformedHeader, "child %d of %v holds %v, want %v", i, id, recID(c), want)
			}
		}
	}
	if p := recParent(r); p != NoRef && int(p) >= s.numRecords {
		return errors.Wrapf(ErrMalformedHeader, "parent %d of %v out of range", p, id)
	}
	switch dt := recDataType(r); dt {
	case DataTypeNull, DataTypeDensity:
	case DataTypeVoxelClass:
		if err := ValidateVoxelClass(UnpackVoxelClass(recPayload(r))); err != nil {
			return errors.Wrapf(ErrMalformedHeader, "node %v: %v", id, err)
		}
	case DataTypeVoxelIOB:
		if p := recPayload(r); p >= NodeDataPointer(s.numData) {
			return errors.Wrapf(ErrMalformedHeader, "data record %d of %v out of range", p, id)
		}
	default:
		return errors.Wrapf(ErrMalformedHeader, "node %v has unknown data type %d", id, dt)
	}
	return nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

func writeU32(buf *bytes.Buffer, v uint32) {
	buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

func writeU64(buf *bytes.Buffer, v uint64) {
	buf.Write(binary.LittleEndian.AppendUint64(nil, v))
}
