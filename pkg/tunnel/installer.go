package tunnel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/coreos/go-iptables/iptables"
	"github.com/datawire/dlib/dexec"
	"github.com/datawire/dlib/dlog"
	"github.com/google/uuid"

	"github.com/fossable/outpost/pkg/errkind"
)

// Toolchain is the installed wg-quick-shaped interface the installer
// drives. WGQuick satisfies it by shelling out to the real binary.
type Toolchain interface {
	Lookup() error
	Up(ctx context.Context, configPath string) error
	Down(ctx context.Context, configPath string) error
}

// WGQuick delegates to the `wg-quick` binary on PATH.
type WGQuick struct {
	Binary string // defaults to "wg-quick"
}

func (w WGQuick) binary() string {
	if w.Binary == "" {
		return "wg-quick"
	}
	return w.Binary
}

func (w WGQuick) Lookup() error {
	if _, err := exec.LookPath(w.binary()); err != nil {
		return errkind.New(errkind.ErrToolchainMissing, "wg-quick not found on PATH", err)
	}
	return nil
}

func (w WGQuick) Up(ctx context.Context, configPath string) error {
	return w.run(ctx, "up", configPath)
}

func (w WGQuick) Down(ctx context.Context, configPath string) error {
	return w.run(ctx, "down", configPath)
}

func (w WGQuick) run(ctx context.Context, verb, configPath string) error {
	cmd := dexec.CommandContext(ctx, w.binary(), verb, configPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return errkind.New(errkind.ErrToolchainMissing, "wg-quick not found on PATH", err)
		}
		return errkind.New(errkind.ErrTunnelActivationFailed, fmt.Sprintf("wg-quick %s failed: %s", verb, strings.TrimSpace(string(out))), err)
	}
	return nil
}

// requiredModules maps a shaping request to the kernel modules spec §4.6's
// bandwidth preflight requires present in /proc/modules.
func requiredModules(p Params) []string {
	var mods []string
	if p.UploadLimitKbps != nil || p.DownloadLimitKbps != nil {
		mods = append(mods, "sch_htb")
	}
	if p.DownloadLimitKbps != nil {
		mods = append(mods, "ifb", "act_mirred")
	}
	return mods
}

// CheckModules verifies every module in mods is listed in /proc/modules,
// failing with *ModulesMissing* otherwise (spec §4.6 "Bandwidth preflight").
func CheckModules(procModules string, mods []string) error {
	if len(mods) == 0 {
		return nil
	}
	var missing []string
	for _, mod := range mods {
		if !strings.Contains(procModules, mod) {
			missing = append(missing, mod)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not loaded", errkind.ErrModulesMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Handle is a live, activated tunnel. Drop tears it down and removes the
// scratch directory (spec §4.6 "Shutdown").
type Handle struct {
	scratchDir string
	configPath string
	toolchain  Toolchain
}

// Install renders the configuration into a file with mode 0600 inside a
// fresh 0700 scratch directory and brings the interface up via the
// toolchain (spec §4.6).
func Install(ctx context.Context, tc Toolchain, p Params) (*Handle, error) {
	if err := tc.Lookup(); err != nil {
		return nil, err
	}

	scratchDir := filepath.Join(os.TempDir(), "outpost-"+uuid.New().String())
	if err := os.MkdirAll(scratchDir, 0700); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	configPath := filepath.Join(scratchDir, p.Interface+".conf")
	if err := os.WriteFile(configPath, []byte(Render(p)), 0600); err != nil {
		os.RemoveAll(scratchDir)
		return nil, fmt.Errorf("writing tunnel configuration: %w", err)
	}

	if err := tc.Up(ctx, configPath); err != nil {
		os.RemoveAll(scratchDir)
		return nil, err
	}

	dlog.Infof(ctx, "tunnel %s activated", p.Interface)
	return &Handle{scratchDir: scratchDir, configPath: configPath, toolchain: tc}, nil
}

// Drop tears the tunnel down and removes the scratch directory.
func (h *Handle) Drop(ctx context.Context) error {
	defer os.RemoveAll(h.scratchDir)
	if err := h.toolchain.Down(ctx, h.configPath); err != nil {
		return err
	}

	// The accounting chain is left in FORWARD's jump table only while the
	// interface exists; wg-quick down's PreDown list removes the jump and
	// the per-mapping rules, but a stale empty chain can survive if the
	// process was killed mid-teardown on a prior run. Clear and delete it
	// defensively so Stats() on the next run doesn't read garbage.
	ipt, err := iptables.New()
	if err != nil {
		return nil
	}
	if exists, _ := ipt.ChainExists("filter", AccountingChain); exists {
		_ = ipt.ClearChain("filter", AccountingChain)
		_ = ipt.DeleteChain("filter", AccountingChain)
	}
	return nil
}
