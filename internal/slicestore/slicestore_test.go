package slicestore

import (
	"bytes"
	"os"
	"testing"

	"github.com/upt-cs/datadiode/internal/wire"
)

func TestHandleDataPacketIdempotent(t *testing.T) {
	dir := t.TempDir()
	paths := BuildPaths(dir, "report.csv")

	payload := bytes.Repeat([]byte{0x11}, wire.DataLen)
	var p wire.Packet
	p.FileID = "report.csv"
	p.PartNo = 3
	copy(p.Payload[:], payload)

	if err := HandleDataPacket(paths.ClearData, paths.ClearList, p); err != nil {
		t.Fatal(err)
	}

	// Duplicate delivery with corrupted payload must not overwrite.
	var dup wire.Packet
	dup.FileID = "report.csv"
	dup.PartNo = 3
	for i := range dup.Payload {
		dup.Payload[i] = 0xFF
	}
	if err := HandleDataPacket(paths.ClearData, paths.ClearList, dup); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(paths.ClearData)
	if err != nil {
		t.Fatal(err)
	}
	got := data[(p.PartNo-1)*wire.DataLen : p.PartNo*wire.DataLen]
	if !bytes.Equal(got, payload) {
		t.Fatalf("duplicate packet clobbered stored slice")
	}
}

func TestHandleChecksumPacketStoresOnce(t *testing.T) {
	dir := t.TempDir()
	var rawID [wire.FileIDLen]byte
	copy(rawID[:], "report.csv")

	var p wire.Packet
	p.FileID = "report.csv"
	p.FileSize = 42
	p.PartNo = wire.ChecksumPart
	for i := range p.Payload {
		p.Payload[i] = byte(i)
	}

	if err := HandleChecksumPacket(dir, p, rawID); err != nil {
		t.Fatal(err)
	}

	paths := BuildPaths(dir, "report.csv")
	first, err := os.ReadFile(paths.Checksum)
	if err != nil {
		t.Fatal(err)
	}

	// A second, different checksum packet must not overwrite the first.
	p2 := p
	for i := range p2.Payload {
		p2.Payload[i] = 0
	}
	if err := HandleChecksumPacket(dir, p2, rawID); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(paths.Checksum)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("second checksum packet overwrote the first")
	}
}

func TestHandleChecksumPacketEOFCreatesSentinelOnce(t *testing.T) {
	dir := t.TempDir()
	var rawID [wire.FileIDLen]byte
	copy(rawID[:], "report.csv")

	var p wire.Packet
	p.FileID = "report.csv"
	p.PartNo = wire.EOFPart

	if err := HandleChecksumPacket(dir, p, rawID); err != nil {
		t.Fatal(err)
	}
	paths := BuildPaths(dir, "report.csv")
	if _, err := os.Stat(paths.Sentinel); err != nil {
		t.Fatalf("sentinel not created: %v", err)
	}

	// Repeated EOF packets (the storm sends 10000) must not error.
	for i := 0; i < 5; i++ {
		if err := HandleChecksumPacket(dir, p, rawID); err != nil {
			t.Fatalf("repeated EOF packet #%d failed: %v", i, err)
		}
	}
}

func TestHandleChecksumPacketEOFSkipsIfAlreadyRecovered(t *testing.T) {
	dir := t.TempDir()
	paths := BuildPaths(dir, "report.csv")
	if err := os.WriteFile(paths.Canonical, []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}

	var rawID [wire.FileIDLen]byte
	copy(rawID[:], "report.csv")
	var p wire.Packet
	p.FileID = "report.csv"
	p.PartNo = wire.EOFPart

	if err := HandleChecksumPacket(dir, p, rawID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(paths.Sentinel); err == nil {
		t.Fatalf("sentinel should not be created once canonical output exists")
	}
}
