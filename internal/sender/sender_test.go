package sender

import (
	"bytes"
	"os"
	"testing"

	"github.com/upt-cs/datadiode/internal/wire"
)

func TestFNVHash32aKnownVector(t *testing.T) {
	// FNV-1a 32-bit offset basis hashed with zero input bytes changes
	// nothing; hashing "a" must match the well-known FNV-1a test vector.
	got := fnvHash32a([]byte("a"))
	const want = 0xe40c292c
	if got != want {
		t.Fatalf("fnvHash32a(\"a\") = %#x, want %#x", got, want)
	}
}

func TestComputeChecksumMatchesManualXOR(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/data.bin"
	content := bytes.Repeat([]byte{0x01, 0x02, 0x03}, wire.DataLen)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	slices := wire.SliceCount(uint32(len(content)))
	got, err := computeChecksum(f, slices)
	if err != nil {
		t.Fatal(err)
	}

	want := [wire.DataLen]byte{}
	for i := uint32(0); i < slices; i++ {
		slice, err := fillClearData(f, i)
		if err != nil {
			t.Fatal(err)
		}
		for j := range want {
			want[j] ^= slice[j]
		}
	}
	if got != want {
		t.Fatalf("checksum mismatch")
	}
}

func TestFillClearDataZeroPadsLastSlice(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/small.bin"
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	slice, err := fillClearData(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	if slice[0] != 1 || slice[1] != 2 || slice[2] != 3 {
		t.Fatalf("unexpected prefix: %v", slice[:3])
	}
	for i := 3; i < wire.DataLen; i++ {
		if slice[i] != 0 {
			t.Fatalf("expected zero padding at byte %d, got %d", i, slice[i])
		}
	}
}

func TestFillXorDataIsSelfInverse(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/data.bin"
	content := make([]byte, wire.DataLen*4)
	for i := range content {
		content[i] = byte(i)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	index := []uint32{0, 1, 2, 3}
	group, err := fillXorData(f, index, 0, 4, 4)
	if err != nil {
		t.Fatal(err)
	}

	// XORing the group's parity back against three of its four members
	// must recover the fourth member's clear slice.
	s0, _ := fillClearData(f, 0)
	s1, _ := fillClearData(f, 1)
	s2, _ := fillClearData(f, 2)
	s3, _ := fillClearData(f, 3)
	recovered := group
	for j := range recovered {
		recovered[j] ^= s0[j] ^ s1[j] ^ s2[j]
	}
	if recovered != s3 {
		t.Fatalf("xor group did not recover missing member")
	}
}
