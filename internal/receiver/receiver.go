// Package receiver implements the data-diode file receiver: three
// concurrent worker goroutines, one per UDP port (clear, parity/xor,
// checksum), each performing a stateless open/seek/write/close against the
// on-disk slice store for every datagram received.
//
// Grounded on datadiode-recv.c's thread_routine/process_data/process_checksum,
// restructured around golang.org/x/sync/errgroup to run the three worker
// goroutines concurrently and propagate the first error, with
// context.Context cancellation used to shut all three down together.
package receiver

import (
	"context"
	"fmt"
	"net"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/upt-cs/datadiode/internal/affinity"
	"github.com/upt-cs/datadiode/internal/ddconfig"
	"github.com/upt-cs/datadiode/internal/slicestore"
	"github.com/upt-cs/datadiode/internal/wire"
)

// Receiver dispatches incoming datagrams on three consecutive ports into the
// slice store rooted at Folder.
type Receiver struct {
	cfg    ddconfig.Receiver
	Folder string
}

// New returns a Receiver storing slices under folder.
func New(folder string, opts ...ddconfig.ReceiverOption) *Receiver {
	return &Receiver{cfg: ddconfig.NewReceiver(opts...), Folder: folder}
}

// Run listens on basePort (clear), basePort+1 (xor), and basePort+2
// (checksum) and dispatches datagrams until ctx is canceled or one of the
// three workers returns an error.
func (r *Receiver) Run(ctx context.Context, basePort int) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.runDataWorker(ctx, basePort, 0, slicestore.ClearDataSuffix, slicestore.ClearListSuffix)
	})
	g.Go(func() error {
		return r.runDataWorker(ctx, basePort+1, 1, slicestore.XorDataSuffix, slicestore.XorListSuffix)
	})
	g.Go(func() error {
		return r.runChecksumWorker(ctx, basePort+2, 2)
	})

	return g.Wait()
}

func (r *Receiver) listen(port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("receiver: listen on port %d: %w", port, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("receiver: listen on port %d: unexpected conn type %T", port, pc)
	}
	return conn, nil
}

func (r *Receiver) runDataWorker(ctx context.Context, port, core int, dataSuffix, listSuffix string) error {
	if r.cfg.PinCores {
		if err := affinity.Pin(core); err != nil {
			r.cfg.Logger.Warn("cpu pinning failed", "core", core, "err", err)
		}
	}
	conn, err := r.listen(port)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	r.cfg.Logger.Info("data worker listening", "port", port)
	buf := make([]byte, wire.MaxBufLen)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiver: recvfrom port %d: %w", port, err)
		}
		pkt, err := wire.Parse(buf[:n])
		if err != nil {
			r.cfg.Logger.Warn("dropping malformed datagram", "port", port, "err", err)
			continue
		}
		base := filepath.Join(r.Folder, pkt.FileID)
		if err := slicestore.HandleDataPacket(base+dataSuffix, base+listSuffix, pkt); err != nil {
			r.cfg.Logger.Warn("failed to store slice", "file", pkt.FileID, "part", pkt.PartNo, "err", err)
		}
	}
}

func (r *Receiver) runChecksumWorker(ctx context.Context, port, core int) error {
	if r.cfg.PinCores {
		if err := affinity.Pin(core); err != nil {
			r.cfg.Logger.Warn("cpu pinning failed", "core", core, "err", err)
		}
	}
	conn, err := r.listen(port)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	r.cfg.Logger.Info("checksum worker listening", "port", port)
	buf := make([]byte, wire.MaxBufLen)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiver: recvfrom port %d: %w", port, err)
		}
		pkt, err := wire.Parse(buf[:n])
		if err != nil {
			r.cfg.Logger.Warn("dropping malformed datagram", "port", port, "err", err)
			continue
		}
		var rawID [wire.FileIDLen]byte
		copy(rawID[:], buf[:wire.FileIDLen])
		if pkt.PartNo == wire.EOFPart {
			r.cfg.Logger.Debug("eof packet", "file", pkt.FileID)
		}
		if err := slicestore.HandleChecksumPacket(r.Folder, pkt, rawID); err != nil {
			r.cfg.Logger.Warn("failed to store checksum", "file", pkt.FileID, "err", err)
		}
	}
}
