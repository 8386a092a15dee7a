// Package ddconfig carries the tunables that would otherwise live as
// file-scope globals (bandwidth target, spray and EOF timing, CPU pinning,
// checksum verification, syslog ports) as explicit,
// functional-option-configured structs instead.
package ddconfig

import "github.com/upt-cs/datadiode/internal/ddlog"

// Sender holds everything datadiode-send needs beyond its five positional
// CLI arguments.
type Sender struct {
	TargetMbps   float64
	SprayRounds  int
	SpinDelayUs  int
	SprayPauseMs int
	EOFPackets   int
	EOFDelayUs   int
	Logger       ddlog.Logger
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithTargetMbps overrides the bandwidth pacing target (default 900).
func WithTargetMbps(mbps float64) SenderOption {
	return func(s *Sender) { s.TargetMbps = mbps }
}

// WithSenderLogger overrides the logger.
func WithSenderLogger(l ddlog.Logger) SenderOption {
	return func(s *Sender) { s.Logger = l }
}

// NewSender returns a Sender with the reference implementation's constants
// as defaults, then applies opts.
func NewSender(opts ...SenderOption) Sender {
	s := Sender{
		TargetMbps:   900,
		SprayRounds:  10,
		SpinDelayUs:  100,
		SprayPauseMs: 500,
		EOFPackets:   10000,
		EOFDelayUs:   1000,
		Logger:       ddlog.Default(),
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Receiver holds datadiode-recv's tunables.
type Receiver struct {
	PinCores bool
	Logger   ddlog.Logger
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithPinCores toggles the per-worker CPU affinity pinning (default true on
// Linux, a no-op elsewhere — see internal/affinity).
func WithPinCores(pin bool) ReceiverOption {
	return func(r *Receiver) { r.PinCores = pin }
}

// WithReceiverLogger overrides the logger.
func WithReceiverLogger(l ddlog.Logger) ReceiverOption {
	return func(r *Receiver) { r.Logger = l }
}

// NewReceiver returns a Receiver with defaults, then applies opts.
func NewReceiver(opts ...ReceiverOption) Receiver {
	r := Receiver{
		PinCores: true,
		Logger:   ddlog.Default(),
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

// Recovery holds datadiode-recover's tunables.
type Recovery struct {
	VerifyChecksum bool
	Logger         ddlog.Logger
}

// RecoveryOption configures a Recovery.
type RecoveryOption func(*Recovery)

// WithVerifyChecksum enables the optional, non-fatal post-recovery checksum
// re-derivation (see DESIGN.md: implemented as optional and non-fatal).
func WithVerifyChecksum(v bool) RecoveryOption {
	return func(r *Recovery) { r.VerifyChecksum = v }
}

// WithRecoveryLogger overrides the logger.
func WithRecoveryLogger(l ddlog.Logger) RecoveryOption {
	return func(r *Recovery) { r.Logger = l }
}

// NewRecovery returns a Recovery with defaults, then applies opts.
func NewRecovery(opts ...RecoveryOption) Recovery {
	r := Recovery{
		VerifyChecksum: true,
		Logger:         ddlog.Default(),
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

// Amplifier holds datadiode-amplify's tunables.
type Amplifier struct {
	ListenPort int
	TargetPort int
	AmpFactor  int
	Logger     ddlog.Logger
}

// AmplifierOption configures an Amplifier.
type AmplifierOption func(*Amplifier)

// WithAmpFactor overrides the per-datagram resend count (default 1000, per
// datadiode-amplify-syslog.c).
func WithAmpFactor(n int) AmplifierOption {
	return func(a *Amplifier) { a.AmpFactor = n }
}

// WithAmplifierLogger overrides the logger.
func WithAmplifierLogger(l ddlog.Logger) AmplifierOption {
	return func(a *Amplifier) { a.Logger = l }
}

// NewAmplifier returns an Amplifier with defaults (listen :1514, forward to
// localhost:2514), then applies opts.
func NewAmplifier(opts ...AmplifierOption) Amplifier {
	a := Amplifier{
		ListenPort: 1514,
		TargetPort: 2514,
		AmpFactor:  1000,
		Logger:     ddlog.Default(),
	}
	for _, o := range opts {
		o(&a)
	}
	return a
}

// Deamplifier holds datadiode-deamplify's tunables.
type Deamplifier struct {
	ListenPort int
	TargetPort int
	Logger     ddlog.Logger
}

// DeamplifierOption configures a Deamplifier.
type DeamplifierOption func(*Deamplifier)

// WithDeamplifierLogger overrides the logger.
func WithDeamplifierLogger(l ddlog.Logger) DeamplifierOption {
	return func(d *Deamplifier) { d.Logger = l }
}

// NewDeamplifier returns a Deamplifier with defaults (listen :2514, forward
// to localhost:514), then applies opts.
func NewDeamplifier(opts ...DeamplifierOption) Deamplifier {
	d := Deamplifier{
		ListenPort: 2514,
		TargetPort: 514,
		Logger:     ddlog.Default(),
	}
	for _, o := range opts {
		o(&d)
	}
	return d
}
