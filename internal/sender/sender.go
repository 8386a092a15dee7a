// Package sender implements the data-diode file sender: a build phase that
// slices the source file, computes its whole-file XOR checksum, and derives
// a deterministic parity-group permutation, followed by a four-part send
// schedule (sequential pass, pause, randomized spray rounds, EOF storm).
//
// Grounded in full on datadiode-send.c: fnv_hash, prepare_fountain,
// fill_clear_data, fill_xor_data, get_checksum, serialize, send_slice and
// send_file all have a direct counterpart here.
package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/upt-cs/datadiode/internal/ddconfig"
	"github.com/upt-cs/datadiode/internal/fountain"
	"github.com/upt-cs/datadiode/internal/wire"
)

// Sender drives one file transfer across the three UDP channels.
type Sender struct {
	cfg          ddconfig.Sender
	xorGroupSize int
	spray        int

	clearConn *net.UDPConn
	xorConn   *net.UDPConn
	checkConn *net.UDPConn
}

// New dials the three consecutive UDP ports (clear, xor/parity, checksum)
// against ip starting at basePort, exactly as datadiode-send.c's get_socket
// calls do for dest_clear/dest_xored/dest_check.
func New(ip string, basePort, xorGroupSize, spray int, opts ...ddconfig.SenderOption) (*Sender, error) {
	cfg := ddconfig.NewSender(opts...)
	s := &Sender{cfg: cfg, xorGroupSize: xorGroupSize, spray: spray}

	var err error
	if s.clearConn, err = dial(ip, basePort); err != nil {
		return nil, err
	}
	if s.xorConn, err = dial(ip, basePort+1); err != nil {
		return nil, err
	}
	if s.checkConn, err = dial(ip, basePort+2); err != nil {
		return nil, err
	}
	return s, nil
}

func dial(ip string, port int) (*net.UDPConn, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("sender: dial %s:%d: %w", ip, port, err)
	}
	return conn, nil
}

// Close releases the three sockets.
func (s *Sender) Close() error {
	var firstErr error
	for _, c := range []*net.UDPConn{s.clearConn, s.xorConn, s.checkConn} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pacer reproduces send_slice's bandwidth-pacing logic: track cumulative
// bytes sent against a monotonic clock, and sleep whenever we are ahead of
// the schedule implied by TargetMbps.
type pacer struct {
	totalBytes uint64
	start      time.Time
	targetMbps float64
}

func newPacer(targetMbps float64) *pacer {
	return &pacer{start: time.Now(), targetMbps: targetMbps}
}

func (p *pacer) recordAndWait(n int) {
	p.totalBytes += uint64(n)
	expected := time.Duration(float64(p.totalBytes) * 8.0 / (p.targetMbps * 1e6) * float64(time.Second))
	elapsed := time.Since(p.start)
	if elapsed < expected {
		time.Sleep(expected - elapsed)
	}
}

// fnvHash32a is the exact 32-bit FNV-1a hash used by datadiode-send.c's
// fnv_hash to desynchronize spray order between transfers of differently
// named files.
func fnvHash32a(data []byte) uint32 {
	h := uint32(2166136261)
	for _, b := range data {
		h = (h * 16777619) ^ uint32(b)
	}
	return h
}

// fillClearData reads one DataLen-sized slice from f at slot (0-based),
// zero-padding any bytes past end-of-file, matching fill_clear_data's
// memset-then-read pattern.
func fillClearData(f *os.File, slot uint32) ([wire.DataLen]byte, error) {
	var buf [wire.DataLen]byte
	_, err := f.ReadAt(buf[:], int64(slot)*wire.DataLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return buf, fmt.Errorf("sender: read slice %d: %w", slot, err)
	}
	return buf, nil
}

// fillXorData XORs together the xorGroupSize clear slices belonging to
// parity group `group`: the slices at permutation positions group,
// group+1, ..., group+xorGroupSize-1, wrapping modulo `slices`.
func fillXorData(f *os.File, index []uint32, group, slices uint32, xorGroupSize int) ([wire.DataLen]byte, error) {
	members := make([]uint32, xorGroupSize)
	for i := 0; i < xorGroupSize; i++ {
		members[i] = index[(group+uint32(i))%slices]
	}
	var out [wire.DataLen]byte
	for _, m := range members {
		slice, err := fillClearData(f, m)
		if err != nil {
			return out, err
		}
		for j := range out {
			out[j] ^= slice[j]
		}
	}
	return out, nil
}

// computeChecksum XORs every slice of the file together, following
// get_checksum. Extra padding slices beyond end-of-file read as zero and so
// do not affect the result.
func computeChecksum(f *os.File, slices uint32) ([wire.DataLen]byte, error) {
	var sum [wire.DataLen]byte
	for i := uint32(0); i < slices; i++ {
		slice, err := fillClearData(f, i)
		if err != nil {
			return sum, err
		}
		for j := range sum {
			sum[j] ^= slice[j]
		}
	}
	return sum, nil
}

func (s *Sender) send(conn *net.UDPConn, p *pacer, fileID string, fileSize, partNo uint32, payload []byte) error {
	buf, err := wire.Serialize(fileID, fileSize, partNo, payload)
	if err != nil {
		return err
	}
	n, err := conn.Write(buf[:])
	if err != nil {
		// A lost datagram is normal on a diode: log it and keep sending.
		s.cfg.Logger.Warn("sendto failed", "part", partNo, "err", err)
		return nil
	}
	p.recordAndWait(n)
	return nil
}

// SendFile runs the full build-and-schedule pipeline for filePath, per
// send_file() in datadiode-send.c.
func (s *Sender) SendFile(ctx context.Context, filePath string) error {
	st, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("sender: stat %s: %w", filePath, err)
	}
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("sender: open %s: %w", filePath, err)
	}
	defer f.Close()

	fileID := filepath.Base(filePath)
	fileSize := uint32(st.Size())
	slices := wire.SliceCount(fileSize)
	if slices < uint32(s.xorGroupSize) {
		slices = uint32(s.xorGroupSize)
	}

	checksum, err := computeChecksum(f, slices)
	if err != nil {
		return err
	}

	gen := fountain.NewGenerator(fountain.SliceSeed)
	index := make([]uint32, slices)
	for i := range index {
		index[i] = uint32(i)
	}
	fountain.Shuffle(gen, index)

	hash := fnvHash32a([]byte(fileID))
	sprayOrder := rand.New(rand.NewSource(int64(hash)))

	pace := newPacer(s.cfg.TargetMbps)
	s.cfg.Logger.Info("starting send", "file", fileID, "size", fileSize, "slices", slices)

	// Phase 1: sequential pass over every slice in clear, slowly.
	for i := uint32(0); i < slices; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		slice, err := fillClearData(f, i)
		if err != nil {
			return err
		}
		if err := s.send(s.clearConn, pace, fileID, fileSize, i+1, slice[:]); err != nil {
			return err
		}
		time.Sleep(time.Duration(s.cfg.SpinDelayUs) * time.Microsecond)
	}
	s.cfg.Logger.Info("sent sequential pass")

	time.Sleep(time.Duration(s.cfg.SprayPauseMs) * time.Millisecond)
	s.cfg.Logger.Info("starting spray rounds")

	// Phase 2: spray rounds. Each round resends the checksum, sprays random
	// clear slices, resends the checksum, then sprays random xor slices.
	roundSize := (slices + 9) / 10
	clearBudget := slices * uint32(s.spray)
	xorBudget := slices * uint32(s.spray)
	var clearSent, xorSent uint32

	for round := 0; round < s.cfg.SprayRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.send(s.checkConn, pace, fileID, fileSize, wire.ChecksumPart, checksum[:]); err != nil {
			return err
		}

		for j := uint32(0); j < roundSize*uint32(s.spray); j++ {
			if clearSent >= clearBudget {
				break
			}
			part := sprayOrder.Uint32()%slices + 1
			slice, err := fillClearData(f, part-1)
			if err != nil {
				return err
			}
			if err := s.send(s.clearConn, pace, fileID, fileSize, part, slice[:]); err != nil {
				return err
			}
			clearSent++
		}

		if err := s.send(s.checkConn, pace, fileID, fileSize, wire.ChecksumPart, checksum[:]); err != nil {
			return err
		}

		for j := uint32(0); j < roundSize*uint32(s.spray); j++ {
			if xorSent >= xorBudget {
				break
			}
			part := sprayOrder.Uint32()%slices + 1
			slice, err := fillXorData(f, index, part-1, slices, s.xorGroupSize)
			if err != nil {
				return err
			}
			if err := s.send(s.xorConn, pace, fileID, fileSize, part, slice[:]); err != nil {
				return err
			}
			xorSent++
		}
	}
	s.cfg.Logger.Info("done spraying, starting EOF storm")

	// Phase 3: EOF storm on the checksum channel.
	for i := 0; i < s.cfg.EOFPackets; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.send(s.checkConn, pace, fileID, fileSize, wire.EOFPart, checksum[:]); err != nil {
			return err
		}
		time.Sleep(time.Duration(s.cfg.EOFDelayUs) * time.Microsecond)
	}
	s.cfg.Logger.Info("send complete", "file", fileID)
	return nil
}
