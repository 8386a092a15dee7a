package receiver

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/upt-cs/datadiode/internal/ddconfig"
	"github.com/upt-cs/datadiode/internal/slicestore"
	"github.com/upt-cs/datadiode/internal/wire"
)

func TestReceiverStoresClearSlice(t *testing.T) {
	dir := t.TempDir()
	const basePort = 31900

	r := New(dir, ddconfig.WithPinCores(false))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, basePort) }()
	time.Sleep(50 * time.Millisecond) // let the listeners bind

	conn, err := net.Dial("udp4", "127.0.0.1:31900")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	payload := make([]byte, wire.DataLen)
	for i := range payload {
		payload[i] = byte(i)
	}
	buf, err := wire.Serialize("widget.bin", 1364, 1, payload)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(buf[:]); err != nil {
		t.Fatal(err)
	}

	paths := slicestore.BuildPaths(dir, "widget.bin")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(paths.ClearData); err == nil {
			cancel()
			<-done
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
	t.Fatal("clear data file was never created")
}
