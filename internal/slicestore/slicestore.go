// Package slicestore implements the on-disk slice store shared by the
// receiver and the recovery tool: five sparse files per in-flight transfer
// (clear data, xor data, checksum, and a one-byte-per-slice presence marker
// for each of the first two) plus a ".finished" sentinel. It is grounded on
// process_data/process_checksum in datadiode-recv.c and the path layout
// datadiode-recovery.c's main() builds from <folder>/<basename>.
package slicestore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/upt-cs/datadiode/internal/wire"
)

// MagicNumber is the one-byte "slice present" flag written into the
// *_list.in marker files.
const MagicNumber = 42

// Suffixes of the five per-transfer files, and the completion sentinel.
const (
	ClearDataSuffix = "_clear_data.in"
	XorDataSuffix   = "_xor_data.in"
	ChecksumSuffix  = "_checksum.in"
	ClearListSuffix = "_clear_list.in"
	XorListSuffix   = "_xor_list.in"
	FinishedSuffix  = ".finished"
)

// Paths holds the full set of on-disk paths for one file identified by
// fileID, rooted at folder.
type Paths struct {
	Canonical string // folder/fileID, the eventual recovered output
	ClearData string
	XorData   string
	Checksum  string
	ClearList string
	XorList   string
	Sentinel  string // Canonical + ".finished"
}

// BuildPaths constructs the five store paths and the sentinel path for
// fileID under folder.
func BuildPaths(folder, fileID string) Paths {
	base := filepath.Join(folder, fileID)
	return Paths{
		Canonical: base,
		ClearData: base + ClearDataSuffix,
		XorData:   base + XorDataSuffix,
		Checksum:  base + ChecksumSuffix,
		ClearList: base + ClearListSuffix,
		XorList:   base + XorListSuffix,
		Sentinel:  base + FinishedSuffix,
	}
}

// HandleChecksumPacket stores a received checksum-channel datagram. Part
// number 0 carries the real checksum; part number 0xFFFFFFFF is the EOF
// sentinel packet (sent many times during the EOF storm) and also carries a
// copy of the checksum payload, so both branches are handled here exactly
// as process_checksum in datadiode-recv.c does.
func HandleChecksumPacket(folder string, p wire.Packet, rawFileID [wire.FileIDLen]byte) error {
	paths := BuildPaths(folder, p.FileID)

	if p.PartNo == wire.EOFPart {
		if _, err := os.Stat(paths.Canonical); err == nil {
			// Already fully recovered; nothing left to signal.
			return nil
		}
		f, err := os.OpenFile(paths.Sentinel, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
		if err != nil {
			if os.IsExist(err) {
				return nil
			}
			return fmt.Errorf("slicestore: create sentinel %s: %w", paths.Sentinel, err)
		}
		f.Close()
	}

	if _, err := os.Stat(paths.Checksum); err == nil {
		// Checksum is resent on every spray round; store only once.
		return nil
	}

	f, err := os.OpenFile(paths.Checksum, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return fmt.Errorf("slicestore: open checksum file %s: %w", paths.Checksum, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(rawFileID[:], 0); err != nil {
		return fmt.Errorf("slicestore: write file id: %w", err)
	}
	var sizeBuf [wire.TotalLen]byte
	putUint32BE(sizeBuf[:], p.FileSize)
	if _, err := f.WriteAt(sizeBuf[:], wire.FileIDLen); err != nil {
		return fmt.Errorf("slicestore: write file size: %w", err)
	}
	if _, err := f.WriteAt(p.Payload[:], wire.FileIDLen+wire.TotalLen); err != nil {
		return fmt.Errorf("slicestore: write checksum: %w", err)
	}
	return nil
}

// HandleDataPacket stores one data-channel datagram (clear or xor, selected
// by dataPath/listPath) into the slice store, following the idempotent
// check-then-set pattern of process_data in datadiode-recv.c: a stale or
// duplicate packet for an already-marked-present slice is silently ignored.
func HandleDataPacket(dataPath, listPath string, p wire.Packet) error {
	if p.PartNo == 0 {
		return fmt.Errorf("slicestore: data packet with part number 0")
	}
	offset := int64(p.PartNo - 1)

	listFile, err := os.OpenFile(listPath, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return fmt.Errorf("slicestore: open slice marker %s: %w", listPath, err)
	}
	defer listFile.Close()

	var mark [1]byte
	if n, _ := listFile.ReadAt(mark[:], offset); n == 1 && mark[0] == MagicNumber {
		return nil // already present
	}
	mark[0] = MagicNumber
	if _, err := listFile.WriteAt(mark[:], offset); err != nil {
		return fmt.Errorf("slicestore: write slice marker: %w", err)
	}

	dataFile, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return fmt.Errorf("slicestore: open data file %s: %w", dataPath, err)
	}
	defer dataFile.Close()

	if _, err := dataFile.WriteAt(p.Payload[:], offset*wire.DataLen); err != nil {
		return fmt.Errorf("slicestore: write slice data: %w", err)
	}
	return nil
}

func putUint32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
