package coordinator

import (
	"fmt"
	"os"

	"github.com/fossable/outpost/pkg/errkind"
	"github.com/fossable/outpost/pkg/tunnel"
)

// Geteuid is overridden in tests; defaults to the real os.Geteuid.
var Geteuid = os.Geteuid

// checkPrivilege fails with *PrivilegeDenied* unless the process can bring
// up a tunnel interface and install packet-filter rules (spec §4.8 step 1).
func checkPrivilege() error {
	if Geteuid() != 0 {
		return fmt.Errorf("%w: outpost must run as root to manage the tunnel interface", errkind.ErrPrivilegeDenied)
	}
	return nil
}

// ReadProcModules is overridden in tests; defaults to the real /proc/modules.
var ReadProcModules = func() (string, error) {
	b, err := os.ReadFile("/proc/modules")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func checkModules(p tunnel.Params) error {
	mods := requiredModulesFor(p)
	if len(mods) == 0 {
		return nil
	}
	content, err := ReadProcModules()
	if err != nil {
		return fmt.Errorf("reading /proc/modules: %w", err)
	}
	return tunnel.CheckModules(content, mods)
}

func requiredModulesFor(p tunnel.Params) []string {
	var mods []string
	if p.UploadLimitKbps != nil || p.DownloadLimitKbps != nil {
		mods = append(mods, "sch_htb")
	}
	if p.DownloadLimitKbps != nil {
		mods = append(mods, "ifb", "act_mirred")
	}
	return mods
}
