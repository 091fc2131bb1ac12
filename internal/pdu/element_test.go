package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeDatasetRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		explicitVR bool
	}{
		{"implicit VR little endian", false},
		{"explicit VR little endian", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := NewDataset()
			ds.Set(tagSOPInstanceUIDForTest, VRUI, "1.2.840.99999.1")
			ds.Set(Tag{0x0028, 0x0010}, VRUS, uint16(512))
			ds.Set(Tag{0x0028, 0x0004}, VRCS, "MONOCHROME2")
			ds.Set(Tag{0x7FE0, 0x0010}, VROB, []byte{0x01, 0x02, 0x03})

			encoded := EncodeDataset(ds, tt.explicitVR)
			decoded, err := DecodeDataset(encoded, tt.explicitVR)
			require.NoError(t, err)

			assert.Equal(t, "1.2.840.99999.1", decoded.String(tagSOPInstanceUIDForTest))
			rows, ok := decoded.Int(Tag{0x0028, 0x0010})
			assert.True(t, ok)
			assert.Equal(t, 512, rows)
			assert.Equal(t, "MONOCHROME2", decoded.String(Tag{0x0028, 0x0004}))
			// The odd-length OB value is padded to even length on the wire.
			assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x00}, decoded.Bytes(Tag{0x7FE0, 0x0010}))
		})
	}
}

func TestEncodeDecodeSequenceRoundTrip(t *testing.T) {
	item1 := NewDataset()
	item1.Set(Tag{0x0008, 0x0018}, VRUI, "1.2.3")
	item2 := NewDataset()
	item2.Set(Tag{0x0008, 0x0018}, VRUI, "1.2.4")

	ds := NewDataset()
	ds.Set(Tag{0x2010, 0x0500}, VRSQ, []*Dataset{item1, item2})

	for _, explicitVR := range []bool{false, true} {
		encoded := EncodeDataset(ds, explicitVR)
		decoded, err := DecodeDataset(encoded, explicitVR)
		require.NoError(t, err)

		el, ok := decoded.Get(Tag{0x2010, 0x0500})
		require.True(t, ok)
		items, ok := el.Value.([]*Dataset)
		require.True(t, ok)
		require.Len(t, items, 2)
		assert.Equal(t, "1.2.3", items[0].String(Tag{0x0008, 0x0018}))
		assert.Equal(t, "1.2.4", items[1].String(Tag{0x0008, 0x0018}))
	}
}

func TestDecodeDatasetTruncatedHeader(t *testing.T) {
	_, err := DecodeDataset([]byte{0x01, 0x02, 0x03}, false)
	assert.Error(t, err)
}

func TestVrForUnknownTagDefaultsToUN(t *testing.T) {
	assert.Equal(t, VRUN, vrFor(Tag{0xABCD, 0x1234}))
}

var tagSOPInstanceUIDForTest = Tag{0x0008, 0x0018}
