// Package config binds the environment variables and command-line flags
// that parameterize a deployment into the structures the rest of the
// pipeline consumes.
package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Env holds the settings that come from the process environment under the
// stable OUTPOST_ prefix (spec §6). Credentials themselves are left to the
// AWS SDK's own provider chain; only outpost-specific knobs live here.
type Env struct {
	HostedZoneID  string `env:"OUTPOST_HOSTED_ZONE_ID,required"`
	InstanceType  string `env:"OUTPOST_INSTANCE_TYPE,default=t4g.nano"`
	IPEchoURL     string `env:"OUTPOST_IP_ECHO_URL,default=https://checkip.amazonaws.com"`
	WireGuardBin  string `env:"OUTPOST_WG_BINARY,default=wg"`
	WGQuickBin    string `env:"OUTPOST_WG_QUICK_BINARY,default=wg-quick"`
	DashboardAddr string `env:"OUTPOST_DASHBOARD_ADDR,default=127.0.0.1:8080"`
}

func LoadEnv(ctx context.Context) (Env, error) {
	var env Env
	err := envconfig.Process(ctx, &env)
	return env, err
}
