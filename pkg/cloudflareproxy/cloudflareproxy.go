// Package cloudflareproxy is the alternate provider named in spec §1: core
// only spawns and supervises the external tunneling daemon, never
// reimplements its protocol.
package cloudflareproxy

import (
	"bufio"
	"context"
	"io"
	"os/exec"

	"github.com/datawire/dlib/dexec"
	"github.com/datawire/dlib/dlog"

	"github.com/fossable/outpost/pkg/errkind"
)

// Params configures the child process. OriginURL is the local service to
// expose; Binary overrides the daemon name, defaulting to "cloudflared".
type Params struct {
	Binary    string
	OriginURL string
}

func (p Params) binary() string {
	if p.Binary == "" {
		return "cloudflared"
	}
	return p.Binary
}

// Run starts the daemon and blocks until it exits. Cancelling ctx makes
// dexec kill the child; Run then returns nil rather than surfacing the
// resulting wait error as a failure.
func Run(ctx context.Context, p Params) error {
	if _, err := exec.LookPath(p.binary()); err != nil {
		return errkind.New(errkind.ErrToolchainMissing, "cloudflared not found on PATH", err)
	}

	cmd := dexec.CommandContext(ctx, p.binary(), "tunnel", "--url", p.OriginURL)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errkind.New(errkind.ErrTunnelActivationFailed, "opening cloudflared stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return errkind.New(errkind.ErrTunnelActivationFailed, "starting cloudflared", err)
	}

	go logLines(ctx, stderr)

	dlog.Infof(ctx, "cloudflared started, forwarding to %s", p.OriginURL)
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return errkind.New(errkind.ErrTunnelActivationFailed, "cloudflared exited unexpectedly", err)
	}
	return nil
}

func logLines(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		dlog.Debugf(ctx, "cloudflared: %s", scanner.Text())
	}
}
