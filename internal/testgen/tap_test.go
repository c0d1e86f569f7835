package testgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTAP(t *testing.T) {
	t.Parallel()

	tap := TAP("ELITE", []byte{1, 2, 3})

	// 2 length + 1 flag + 17 header + 1 checksum, then 2 + 1 + 3 + 1.
	require.Len(t, tap, 21+7)

	assert.Equal(t, []byte{19, 0}, tap[0:2])
	assert.Equal(t, byte(0x00), tap[2])
	assert.Equal(t, "ELITE     ", string(tap[4:14]))
	assert.Equal(t, []byte{3, 0}, tap[14:16])

	var xor byte
	for _, b := range tap[2:20] {
		xor ^= b
	}
	assert.Equal(t, xor, tap[20], "header checksum")

	data := tap[21:]
	assert.Equal(t, []byte{5, 0}, data[0:2])
	assert.Equal(t, byte(0xff), data[2])
	assert.Equal(t, []byte{1, 2, 3}, data[3:6])
	assert.Equal(t, byte(0xff^1^2^3), data[6])
}

func TestTAP_LongNameIsCut(t *testing.T) {
	t.Parallel()

	tap := TAP("Chaos: The Battle of Wizards", nil)
	assert.Equal(t, "Chaos: The", string(tap[4:14]))
}
