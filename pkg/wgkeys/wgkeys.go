// Package wgkeys generates WireGuard private/public/preshared key triples
// by delegating to the installed wg(8) toolchain (spec §4.2) — it never
// implements Curve25519 itself.
package wgkeys

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/datawire/dlib/dexec"

	"github.com/fossable/outpost/pkg/errkind"
)

// Toolchain is the subset of wg(8) this package drives. The default
// implementation shells out with dexec; tests substitute a fake.
type Toolchain interface {
	GenKey(ctx context.Context) (string, error)
	PubKey(ctx context.Context, privateKey string) (string, error)
	GenPSK(ctx context.Context) (string, error)
}

// WG shells out to the real wg binary via dexec, the same context-aware
// subprocess wrapper the teacher uses for helm/dns helper invocations.
type WG struct {
	// Binary overrides the wg executable name, defaulting to "wg" on PATH.
	Binary string
}

func (w WG) binary() string {
	if w.Binary != "" {
		return w.Binary
	}
	return "wg"
}

func (w WG) run(ctx context.Context, stdin string, args ...string) (string, error) {
	cmd := dexec.CommandContext(ctx, w.binary(), args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", errkind.New(errkind.ErrToolchainMissing, "wg binary not found on PATH", err)
		}
		return "", errkind.New(errkind.ErrToolchainFailed, "wg "+strings.Join(args, " ")+" failed", err)
	}
	return strings.TrimSpace(string(bytes.TrimSpace(out))), nil
}

func (w WG) GenKey(ctx context.Context) (string, error) {
	return w.run(ctx, "", "genkey")
}

func (w WG) PubKey(ctx context.Context, privateKey string) (string, error) {
	return w.run(ctx, privateKey+"\n", "pubkey")
}

func (w WG) GenPSK(ctx context.Context) (string, error) {
	return w.run(ctx, "", "genpsk")
}

// KeyTriple is the private/public/preshared key set issued to one tunnel
// peer. All three fields are non-empty by construction.
type KeyTriple struct {
	Private   string
	Public    string
	Preshared string
}

// KeyPair holds one KeyTriple per peer.
type KeyPair struct {
	Origin KeyTriple
	Proxy  KeyTriple
}

// GenerateTriple produces one peer's key triple.
func GenerateTriple(ctx context.Context, tc Toolchain) (KeyTriple, error) {
	priv, err := tc.GenKey(ctx)
	if err != nil {
		return KeyTriple{}, err
	}
	pub, err := tc.PubKey(ctx, priv)
	if err != nil {
		return KeyTriple{}, err
	}
	psk, err := tc.GenPSK(ctx)
	if err != nil {
		return KeyTriple{}, err
	}
	return KeyTriple{Private: priv, Public: pub, Preshared: psk}, nil
}

// GeneratePair produces independent key triples for both tunnel peers.
// Per spec §4.2, the two private keys are not compared for inequality here
// (the probability of collision is negligible) — tests assert it instead.
func GeneratePair(ctx context.Context, tc Toolchain) (KeyPair, error) {
	origin, err := GenerateTriple(ctx, tc)
	if err != nil {
		return KeyPair{}, err
	}
	proxy, err := GenerateTriple(ctx, tc)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Origin: origin, Proxy: proxy}, nil
}
