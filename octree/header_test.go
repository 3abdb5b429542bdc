package octree

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestCreateHierarchyHeader(t *testing.T) {
	h, err := CreateHierarchyHeader(InvalidOffset, 32, 32, 24, 8, 0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.Validate(32*9), test.ShouldBeNil)

	for _, tc := range []struct {
		name                 string
		stride, size, data   uint16
		valueSize, rootDepth uint8
	}{
		{"zero stride", 0, 32, 24, 8, 0},
		{"record too small", 16, 16, 24, 8, 0},
		{"stride below record size", 32, 40, 24, 8, 0},
		{"value larger than slot", 32, 32, 24, 9, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateHierarchyHeader(InvalidOffset, tc.stride, tc.size, tc.data, tc.valueSize, tc.rootDepth, 0)
			test.That(t, errors.Is(err, ErrMalformedHeader), test.ShouldBeTrue)
		})
	}
}

func TestHierarchyHeaderValidate(t *testing.T) {
	h, err := CreateHierarchyHeader(InvalidOffset, 32, 32, 24, 8, 0, 64)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.Validate(288), test.ShouldBeNil)

	ref, err := h.RootRef()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ref, test.ShouldEqual, Ref(2))
	test.That(t, h.RecordOffset(ref), test.ShouldEqual, uint64(64))

	t.Run("array length off stride", func(t *testing.T) {
		test.That(t, errors.Is(h.Validate(100), ErrMalformedHeader), test.ShouldBeTrue)
	})

	t.Run("root pointer", func(t *testing.T) {
		bad := h
		bad.RootNodePointer = 40
		test.That(t, errors.Is(bad.Validate(288), ErrMalformedHeader), test.ShouldBeTrue)
		bad.RootNodePointer = 288
		test.That(t, errors.Is(bad.Validate(288), ErrMalformedHeader), test.ShouldBeTrue)
		bad.RootNodePointer = InvalidOffset
		test.That(t, errors.Is(bad.Validate(288), ErrMalformedHeader), test.ShouldBeTrue)
		_, err := bad.RootRef()
		test.That(t, errors.Is(err, ErrMalformedHeader), test.ShouldBeTrue)
	})

	t.Run("pointer map inside node array", func(t *testing.T) {
		bad := h
		bad.PoMapOffset = 64
		test.That(t, errors.Is(bad.Validate(288), ErrMalformedHeader), test.ShouldBeTrue)
		bad.PoMapOffset = 288
		test.That(t, bad.Validate(288), test.ShouldBeNil)
	})
}

func TestHierarchyHeaderString(t *testing.T) {
	s := newTestStore(t, 5)
	test.That(t, s.Header().String(), test.ShouldEqual,
		"poMapOffset = <invalid>, implArrayStride = 32, implSize = 32, dataImplSize = 24, "+
			"dataValueSize = 8, rootNodeDepth = 0, rootNodePointer = 0")

	h, err := CreateHierarchyHeader(1024, 48, 32, 24, 8, 2, 96)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, HierarchyHeaderValueString(h), test.ShouldEqual,
		"poMapOffset = 1024, implArrayStride = 48, implSize = 32, dataImplSize = 24, "+
			"dataValueSize = 8, rootNodeDepth = 2, rootNodePointer = 96")

	var b [hierarchyHeaderSize]byte
	h.encode(b[:])
	test.That(t, decodeHierarchyHeader(b[:]), test.ShouldResemble, h)
}
