package testgen

const (
	tapFlagHeader = 0x00
	tapFlagData   = 0xff
	tapTypeCode   = 3
	tapNameLen    = 10
)

// TAP returns a minimal tape image: a standard "Code" header block named
// name (padded or cut to ten characters) followed by one data block holding
// payload. Each block carries its length prefix and XOR checksum, so the
// result loads in an emulator.
func TAP(name string, payload []byte) []byte {
	header := make([]byte, 0, 17)
	header = append(header, tapTypeCode)
	padded := []byte(name)
	if len(padded) > tapNameLen {
		padded = padded[:tapNameLen]
	}
	for len(padded) < tapNameLen {
		padded = append(padded, ' ')
	}
	header = append(header, padded...)
	header = append(header, le16(len(payload))...)
	header = append(header, le16(32768)...)
	header = append(header, le16(32768)...)

	out := tapBlock(tapFlagHeader, header)
	return append(out, tapBlock(tapFlagData, payload)...)
}

func tapBlock(flag byte, data []byte) []byte {
	block := make([]byte, 0, len(data)+4)
	block = append(block, le16(len(data)+2)...)
	block = append(block, flag)
	block = append(block, data...)

	checksum := flag
	for _, b := range data {
		checksum ^= b
	}
	return append(block, checksum)
}

func le16(v int) []byte {
	return []byte{byte(v), byte(v >> 8)}
}
