// Package wire implements the fixed-size UDP datagram layout shared by the
// sender and receiver: a 100-byte file identifier, a 4-byte file size, a
// 4-byte part number, and a 1364-byte payload, packed big-endian.
package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	// FileIDLen is the width of the NUL-padded basename field.
	FileIDLen = 100
	// TotalLen is the width of the file-size field.
	TotalLen = 4
	// PartLen is the width of the part-number field.
	PartLen = 4
	// DataLen is the width of the payload field.
	DataLen = 1364
	// MaxBufLen is the full datagram size: FileIDLen+TotalLen+PartLen+DataLen.
	MaxBufLen = FileIDLen + TotalLen + PartLen + DataLen
)

// Part number sentinels.
const (
	ChecksumPart = uint32(0)
	EOFPart      = uint32(0xFFFFFFFF)
)

// Packet is one parsed datagram.
type Packet struct {
	FileID   string
	FileSize uint32
	PartNo   uint32
	Payload  [DataLen]byte
}

// Serialize packs a Packet into a MaxBufLen-byte datagram, grounded on
// serialize() in datadiode-send.c.
func Serialize(fileID string, fileSize, partNo uint32, payload []byte) ([MaxBufLen]byte, error) {
	var buf [MaxBufLen]byte
	if len(fileID) > FileIDLen {
		return buf, fmt.Errorf("wire: file id %q longer than %d bytes", fileID, FileIDLen)
	}
	if len(payload) > DataLen {
		return buf, fmt.Errorf("wire: payload length %d exceeds %d", len(payload), DataLen)
	}
	copy(buf[0:FileIDLen], fileID)
	binary.BigEndian.PutUint32(buf[FileIDLen:FileIDLen+TotalLen], fileSize)
	binary.BigEndian.PutUint32(buf[FileIDLen+TotalLen:FileIDLen+TotalLen+PartLen], partNo)
	copy(buf[FileIDLen+TotalLen+PartLen:], payload)
	return buf, nil
}

// Parse unpacks a received datagram. buf may be shorter than MaxBufLen (the
// trailing payload bytes are simply absent from a short read); it must be at
// least FileIDLen+TotalLen+PartLen long.
func Parse(buf []byte) (Packet, error) {
	var p Packet
	if len(buf) < FileIDLen+TotalLen+PartLen {
		return p, fmt.Errorf("wire: datagram too short: %d bytes", len(buf))
	}
	p.FileID = trimNUL(buf[0:FileIDLen])
	p.FileSize = binary.BigEndian.Uint32(buf[FileIDLen : FileIDLen+TotalLen])
	p.PartNo = binary.BigEndian.Uint32(buf[FileIDLen+TotalLen : FileIDLen+TotalLen+PartLen])
	n := copy(p.Payload[:], buf[FileIDLen+TotalLen+PartLen:])
	_ = n
	return p, nil
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// SliceCount returns the number of DataLen-sized slices needed to cover a
// file of the given size (ceiling division, minimum 1).
func SliceCount(fileSize uint32) uint32 {
	if fileSize == 0 {
		return 1
	}
	n := fileSize / DataLen
	if fileSize%DataLen != 0 {
		n++
	}
	return n
}
