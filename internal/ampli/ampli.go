// Package ampli implements the syslog amplifier and deamplifier: a
// fixed-factor UDP packet multiplier paired with a duplicate-suppressing
// forwarder, compensating for diode packet loss without any retransmission
// protocol.
//
// Grounded on datadiode-amplify-syslog.c and datadiode-deamplify-syslog.c.
// Per a deliberate redesign decision (see DESIGN.md), the rolling counter is
// encoded big-endian via encoding/binary rather than the original's
// host-native-order union trick, since portability across receiver/sender
// architectures is worth more here than bit-compatibility with the
// historical C binaries.
package ampli

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/upt-cs/datadiode/internal/ddconfig"
)

const maxSyslogBufLen = 1024 + 2

// Amplify listens on cfg.ListenPort (UDP/IPv6) and resends every inbound
// datagram cfg.AmpFactor times to localhost:cfg.TargetPort, prefixed with a
// 16-bit rolling counter so the deamplifier on the other side of the diode
// can drop duplicates.
func Amplify(ctx context.Context, cfg ddconfig.Amplifier) error {
	listener, err := net.ListenUDP("udp6", &net.UDPAddr{Port: cfg.ListenPort})
	if err != nil {
		return fmt.Errorf("ampli: listen on port %d: %w", cfg.ListenPort, err)
	}
	defer listener.Close()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	target, err := net.ResolveUDPAddr("udp6", fmt.Sprintf("[::1]:%d", cfg.TargetPort))
	if err != nil {
		return fmt.Errorf("ampli: resolve target port %d: %w", cfg.TargetPort, err)
	}
	out, err := net.DialUDP("udp6", nil, target)
	if err != nil {
		return fmt.Errorf("ampli: dial target port %d: %w", cfg.TargetPort, err)
	}
	defer out.Close()

	cfg.Logger.Info("amplifier listening", "port", cfg.ListenPort, "factor", cfg.AmpFactor)

	var counter uint16
	buf := make([]byte, maxSyslogBufLen)
	framed := make([]byte, 2, maxSyslogBufLen)
	for {
		n, err := listener.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ampli: recvfrom: %w", err)
		}
		binary.BigEndian.PutUint16(framed[:2], counter)
		framed = append(framed[:2], buf[:n]...)

		for i := 0; i < cfg.AmpFactor; i++ {
			if _, err := out.Write(framed); err != nil {
				cfg.Logger.Warn("sendto failed", "err", err)
			}
		}
		counter++ // wraps at 65536, by design
	}
}

// Deamplify listens on cfg.ListenPort (UDP/IPv6), strips the 16-bit counter
// prefix, and forwards only the first copy of each counter value to
// localhost:cfg.TargetPort, suppressing the amplifier's duplicates.
func Deamplify(ctx context.Context, cfg ddconfig.Deamplifier) error {
	listener, err := net.ListenUDP("udp6", &net.UDPAddr{Port: cfg.ListenPort})
	if err != nil {
		return fmt.Errorf("ampli: listen on port %d: %w", cfg.ListenPort, err)
	}
	defer listener.Close()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	target, err := net.ResolveUDPAddr("udp6", fmt.Sprintf("[::1]:%d", cfg.TargetPort))
	if err != nil {
		return fmt.Errorf("ampli: resolve target port %d: %w", cfg.TargetPort, err)
	}
	out, err := net.DialUDP("udp6", nil, target)
	if err != nil {
		return fmt.Errorf("ampli: dial target port %d: %w", cfg.TargetPort, err)
	}
	defer out.Close()

	cfg.Logger.Info("deamplifier listening", "port", cfg.ListenPort)

	prevCounter := uint16(65535)
	buf := make([]byte, maxSyslogBufLen)
	for {
		n, err := listener.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ampli: recvfrom: %w", err)
		}
		if n < 2 {
			continue
		}
		counter := binary.BigEndian.Uint16(buf[:2])
		if counter == prevCounter {
			continue
		}
		prevCounter = counter
		if _, err := out.Write(buf[2:n]); err != nil {
			cfg.Logger.Warn("sendto failed", "err", err)
		}
	}
}
