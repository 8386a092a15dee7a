package ampli

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/upt-cs/datadiode/internal/ddconfig"
)

func TestAmplifyDeamplifyRoundTrip(t *testing.T) {
	if _, err := net.ListenPacket("udp6", "[::1]:0"); err != nil {
		t.Skip("IPv6 loopback not available in this environment")
	}

	const (
		listenPort = 41514
		relayPort  = 42514
		finalPort  = 41400 // stand-in for 514, avoiding the need for root
	)

	final, err := net.ListenUDP("udp6", &net.UDPAddr{Port: finalPort})
	if err != nil {
		t.Fatal(err)
	}
	defer final.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ampCfg := ddconfig.NewAmplifier(func(a *ddconfig.Amplifier) {
		a.ListenPort = listenPort
		a.TargetPort = relayPort
	}, ddconfig.WithAmpFactor(3))
	deampCfg := ddconfig.NewDeamplifier(func(d *ddconfig.Deamplifier) {
		d.ListenPort = relayPort
		d.TargetPort = finalPort
	})

	go Amplify(ctx, ampCfg)
	go Deamplify(ctx, deampCfg)
	time.Sleep(100 * time.Millisecond)

	src, err := net.Dial("udp6", "[::1]:41514")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if _, err := src.Write([]byte("hello syslog")); err != nil {
		t.Fatal(err)
	}

	final.SetReadDeadline(time.Now().Add(2 * time.Second))
	received := 0
	buf := make([]byte, 2048)
	for {
		n, err := final.Read(buf)
		if err != nil {
			break
		}
		if string(buf[:n]) != "hello syslog" {
			t.Fatalf("unexpected payload %q", buf[:n])
		}
		received++
	}
	if received != 1 {
		t.Fatalf("expected exactly 1 forwarded datagram after dedup, got %d", received)
	}
}
