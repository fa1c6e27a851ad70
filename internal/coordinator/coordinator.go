// Package coordinator drives the full origin-side lifecycle: preflight,
// endpoint validation, key and subnet selection, stack deploy/wait, tunnel
// activation, and the dashboard handoff, tearing everything down in the
// right order on shutdown (spec §4.8, C8).
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/fossable/outpost/internal/config"
	"github.com/fossable/outpost/internal/dashboard"
	"github.com/fossable/outpost/pkg/awsstack"
	"github.com/fossable/outpost/pkg/errkind"
	"github.com/fossable/outpost/pkg/stacktemplate"
	"github.com/fossable/outpost/pkg/stats"
	"github.com/fossable/outpost/pkg/subnet"
	"github.com/fossable/outpost/pkg/tunnel"
	"github.com/fossable/outpost/pkg/wgkeys"
)

// Deps wires the collaborators the coordinator orchestrates but does not
// implement: the AWS clients, the installed toolchains, and the dashboard's
// HTTP surface.
type Deps struct {
	WGToolchain     wgkeys.Toolchain
	InterfaceAddrs  subnet.InterfaceAddrs
	AWSDriver       *awsstack.Driver
	ImagePublisher  awsstack.ImagePublisher
	TunnelToolchain tunnel.Toolchain
	HTTPClient      *http.Client
	IPEchoURL       string
	Dashboard       *dashboard.AppState
	Renderer        dashboard.Renderer
	DashboardAddr   string
}

// stackNameFor derives the CloudFormation stack name from the first
// ingress host (spec §9 Open Question: multi-ingress DNS/stack naming was
// never specced beyond a single host; this mirrors the original
// implementation, which only ever supported one).
func stackNameFor(host string) string {
	return "outpost-" + strings.ReplaceAll(host, ".", "-")
}

// Run executes the full lifecycle. It returns when shutdown has been
// processed and all cleanup has completed. Non-fatal cleanup failures are
// aggregated with multierror rather than masking the first one, and are
// logged, not returned.
func Run(ctx context.Context, d config.Deployment, deps Deps) error {
	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		SoftShutdownTimeout:  10 * time.Second,
		EnableSignalHandling: true,
	})

	grp.Go("dashboard", func(ctx context.Context) error {
		return runDashboard(ctx, deps)
	})

	grp.Go("main", func(ctx context.Context) error {
		return runPipeline(ctx, d, deps)
	})

	return grp.Wait()
}

func runDashboard(ctx context.Context, deps Deps) error {
	if deps.DashboardAddr == "" {
		<-ctx.Done()
		return nil
	}
	srv := &http.Server{
		Addr:    deps.DashboardAddr,
		Handler: dashboard.NewServer(deps.Dashboard, deps.Renderer),
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// runPipeline is the numbered main flow of spec §4.8. Each step is
// cancellable; cleanup scope widens as the pipeline advances past step 5
// (stack deploy) and past step 7 (tunnel install).
func runPipeline(ctx context.Context, d config.Deployment, deps Deps) (err error) {
	var stackHandle *awsstack.StackHandle
	var tunnelHandle *tunnel.Handle

	defer func() {
		cleanupErr := cleanup(context.Background(), tunnelHandle, stackHandle)
		if cleanupErr != nil {
			dlog.Errorf(ctx, "cleanup reported errors: %v", cleanupErr)
		}
		// A shutdown signal received after the stack was created surfaces as
		// ErrCancelled from stackHandle.Wait; cleanup above has already issued
		// the single DeleteStack, so this is the same clean outcome as the
		// step-8 shutdown path, not a failure.
		if errors.Is(err, errkind.ErrCancelled) {
			err = nil
		}
	}()

	// 1. Preflight.
	if err := checkPrivilege(); err != nil {
		return err
	}

	// 2/3 are already done by the caller (endpoint parsing/port mappings
	// live in internal/config.AWSFlags.Validate); 3 continues here with
	// key/subnet generation.
	if ctx.Err() != nil {
		return fmt.Errorf("%w: cancelled before deploy", errkind.ErrCancelled)
	}

	keys, err := wgkeys.GeneratePair(ctx, deps.WGToolchain)
	if err != nil {
		return err
	}

	choice, err := subnet.Pick(deps.InterfaceAddrs)
	if err != nil {
		return err
	}

	// 4. Discover origin public IP.
	originPublicIP, err := DiscoverPublicIP(ctx, deps.HTTPClient, deps.IPEchoURL)
	if err != nil {
		return err
	}

	originHost := d.Origin.Host

	params := stacktemplate.Params{
		StackName:       stackNameFor(d.Ingresses[0].Host),
		Region:          d.Region,
		IngressHost:     d.Ingresses[0].Host,
		PortMappings:    d.PortMappings,
		OriginHost:      originHost,
		InstanceType:    d.InstanceType,
		HostedZoneID:    d.HostedZoneID,
		Debug:           d.Debug,
		UseCloudFront:   d.UseCloudFront,
		OriginPublicIP:  originPublicIP,
		Subnet:          choice.Prefix,
		ProxyTunnelIP:   choice.ProxyIP,
		OriginTunnelIP:  choice.OriginIP,
		ProxyPrivateKey: keys.Proxy.Private,
		ProxyPublicKey:  keys.Proxy.Public,
		OriginPublicKey: keys.Origin.Public,
		// Only the origin's independently-generated preshared key is ever
		// used, on both sides of the tunnel; the proxy's copy is discarded,
		// matching the original implementation's WireGuardPair wiring.
		PresharedKey: keys.Origin.Preshared,
	}

	if err := checkModules(tunnelParamsFor(params, d, originHost, keys.Origin.Private)); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: cancelled before deploy", errkind.ErrCancelled)
	}

	// 5. Deploy stack.
	stackHandle, err = awsstack.Deploy(ctx, deps.AWSDriver, params, deps.ImagePublisher)
	if err != nil {
		return err
	}

	// 6. Wait for stack.
	result, err := stackHandle.Wait(ctx)
	if err != nil {
		return err
	}

	deps.Dashboard.SetProxyInfo(dashboard.ProxyInfo{
		PublicIP:   result.ProxyPublicIP,
		InstanceID: result.ProxyInstanceID,
		LaunchTime: result.LaunchTime,
		StackName:  params.StackName,
		Region:     params.Region,
	})

	// 7. Install tunnel.
	tp := tunnelParamsFor(params, d, originHost, keys.Origin.Private)
	tp.ProxyPublicIP = result.ProxyPublicIP
	tunnelHandle, err = tunnel.Install(ctx, deps.TunnelToolchain, tp)
	if err != nil {
		return err
	}

	sampler, err := stats.NewSampler()
	if err != nil {
		dlog.Warnf(ctx, "stats sampler unavailable: %v", err)
	} else {
		deps.Dashboard.SetSampler(sampler)
	}

	// 8. Hand state to the dashboard, wait for shutdown.
	dlog.Infof(ctx, "tunnel up, proxy public ip %s", result.ProxyPublicIP)
	<-ctx.Done()

	// 9. Cleanup happens in the deferred call above.
	return nil
}

func tunnelParamsFor(p stacktemplate.Params, d config.Deployment, originHost, originPrivateKey string) tunnel.Params {
	return tunnel.Params{
		Interface:         "wg0",
		OriginTunnelIP:    p.OriginTunnelIP,
		ProxyTunnelIP:     p.ProxyTunnelIP,
		ProxyPublicIP:     p.OriginPublicIP, // overwritten with the real proxy IP once the stack completes
		PrivateKey:        originPrivateKey,
		PublicKey:         p.ProxyPublicKey,
		PresharedKey:      p.PresharedKey,
		OriginHost:        originHost,
		PortMappings:      p.PortMappings,
		UploadLimitKbps:   d.UploadLimitKbps,
		DownloadLimitKbps: d.DownloadLimitKbps,
	}
}

// cleanup implements spec §4.8 step 9 and §5's ordering guarantee: tunnel
// teardown completes before stack deletion begins. Failures here are
// logged, never propagated as the pipeline's own error.
func cleanup(ctx context.Context, tunnelHandle *tunnel.Handle, stackHandle *awsstack.StackHandle) error {
	var result *multierror.Error

	if tunnelHandle != nil {
		if err := tunnelHandle.Drop(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("tunnel teardown: %w", err))
		}
	}
	if stackHandle != nil {
		if err := stackHandle.Cleanup(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("stack cleanup: %w", err))
		}
	}
	return result.ErrorOrNil()
}
