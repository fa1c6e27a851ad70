package awsstack

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/google/uuid"

	"github.com/datawire/dlib/dlog"

	"github.com/fossable/outpost/pkg/errkind"
	"github.com/fossable/outpost/pkg/stacktemplate"
)

// PollInterval is how often Wait/Cleanup re-check stack status, per spec
// §4.5. A var, not a const, so tests can shrink it.
var PollInterval = 5 * time.Second

// Driver owns the three AWS client slices the stack lifecycle touches.
type Driver struct {
	CFN     CloudFormationAPI
	EC2     EC2API
	Route53 Route53API
}

// StackHandle is the live reference to a deployed stack. It carries no
// destructor: unlike the original implementation's Drop impl, the
// coordinator is responsible for calling Cleanup. A stack whose Cleanup is
// never called is left to the proxy's own self-destruct watchdog.
type StackHandle struct {
	StackName string
	Region    string

	driver *Driver
	seen   map[string]struct{} // progress view: distinct resource logical IDs observed
	done   map[string]struct{} // completed non-stack resources
}

// StackResult is what Wait returns on CREATE_COMPLETE.
type StackResult struct {
	ProxyPublicIP  string
	ProxyInstanceID string
	LaunchTime      time.Time
}

// NewHandle reattaches to a stack that was already deployed, skipping
// validation and CreateStack. Used by tests that only exercise
// Wait/Cleanup; the coordinator always goes through Deploy.
func NewHandle(driver *Driver, stackName, region string) *StackHandle {
	return &StackHandle{
		StackName: stackName,
		Region:    region,
		driver:    driver,
		seen:      map[string]struct{}{},
		done:      map[string]struct{}{},
	}
}

// Deploy validates the DNS zone, picks a boot image, renders the template,
// and submits CreateStack (spec §4.5 "Deploy").
func Deploy(ctx context.Context, driver *Driver, p stacktemplate.Params, pub ImagePublisher) (*StackHandle, error) {
	if err := ValidateZone(ctx, driver.Route53, p.HostedZoneID, p.IngressHost); err != nil {
		return nil, err
	}

	imageID, err := FindImage(ctx, driver.EC2, pub, p.Architecture())
	if err != nil {
		return nil, err
	}

	body, err := stacktemplate.BuildStack(p)
	if err != nil {
		return nil, fmt.Errorf("rendering stack template: %w", err)
	}

	token := uuid.New().String()
	_, err = driver.CFN.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    &p.StackName,
		TemplateBody: &body,
		Parameters: []cfntypes.Parameter{
			{ParameterKey: strPtr("HostedZoneId"), ParameterValue: &p.HostedZoneID},
			{ParameterKey: strPtr("NixOSAMI"), ParameterValue: &imageID},
		},
		Capabilities:       []cfntypes.Capability{cfntypes.CapabilityCapabilityIam},
		OnFailure:          cfntypes.OnFailureDelete,
		ClientRequestToken: &token,
	})
	if err != nil {
		return nil, classifyCloudError(err, "creating stack "+p.StackName)
	}

	dlog.Infof(ctx, "stack %s: create initiated", p.StackName)
	return &StackHandle{
		StackName: p.StackName,
		Region:    p.Region,
		driver:    driver,
		seen:      map[string]struct{}{},
		done:      map[string]struct{}{},
	}, nil
}

// Wait polls DescribeStacks until a terminal status, per the table in spec
// §4.5. Cancellation falls through to the caller, which is expected to call
// Cleanup (spec §4.5 "Cancellation").
func (h *StackHandle) Wait(ctx context.Context) (*StackResult, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		stack, err := h.describe(ctx)
		if err != nil {
			if isStackDisappeared(err) {
				return nil, errkind.New(errkind.ErrStackDisappeared, "stack disappeared during wait (auto-delete-on-failure)", err)
			}
			dlog.Warnf(ctx, "stack %s: poll failed: %v", h.StackName, err)
		} else {
			h.recordProgress(ctx, stack.StackStatus)

			switch stack.StackStatus {
			case cfntypes.StackStatusCreateComplete:
				return h.extractResult(ctx, stack)
			case cfntypes.StackStatusCreateInProgress, cfntypes.StackStatusDeleteInProgress:
				// keep polling
			case cfntypes.StackStatusCreateFailed,
				cfntypes.StackStatusRollbackInProgress,
				cfntypes.StackStatusRollbackFailed,
				cfntypes.StackStatusRollbackComplete,
				cfntypes.StackStatusDeleteFailed,
				cfntypes.StackStatusDeleteComplete:
				reason := "unknown reason"
				if stack.StackStatusReason != nil {
					reason = *stack.StackStatusReason
				}
				return nil, errkind.New(errkind.ErrCloudRejected, fmt.Sprintf("stack %s: %s (%s)", h.StackName, stack.StackStatus, reason), nil)
			default:
				return nil, errkind.New(errkind.ErrUnexpectedStackState, fmt.Sprintf("stack %s: unexpected status %s", h.StackName, stack.StackStatus), nil)
			}
		}

		select {
		case <-ctx.Done():
			return nil, errkind.New(errkind.ErrCancelled, "wait cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Cleanup deletes the stack and polls to DELETE_COMPLETE or disappearance,
// which counts as success (spec §4.5 "Cleanup").
func (h *StackHandle) Cleanup(ctx context.Context) error {
	token := uuid.New().String()
	_, err := h.driver.CFN.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName:          &h.StackName,
		ClientRequestToken: &token,
	})
	if err != nil {
		return classifyCloudError(err, "deleting stack "+h.StackName)
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		stack, err := h.describe(ctx)
		if err != nil {
			if isStackDisappeared(err) {
				dlog.Infof(ctx, "stack %s: gone", h.StackName)
				return nil
			}
			dlog.Warnf(ctx, "stack %s: cleanup poll failed: %v", h.StackName, err)
		} else if stack.StackStatus == cfntypes.StackStatusDeleteComplete {
			return nil
		} else if stack.StackStatus == cfntypes.StackStatusDeleteFailed {
			reason := "unknown reason"
			if stack.StackStatusReason != nil {
				reason = *stack.StackStatusReason
			}
			return errkind.New(errkind.ErrCloudRejected, fmt.Sprintf("stack %s: delete failed: %s", h.StackName, reason), nil)
		}

		<-ticker.C
		_ = ctx // the wait between polls does not watch ctx.Done(); the AWS calls do use ctx, so the coordinator passes a background context (spec §5, "the supervisor never aborts cleanup")
	}
}

func (h *StackHandle) describe(ctx context.Context) (*cfntypes.Stack, error) {
	out, err := h.driver.CFN.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: &h.StackName})
	if err != nil {
		return nil, err
	}
	if len(out.Stacks) == 0 {
		return nil, errkind.New(errkind.ErrStackDisappeared, "DescribeStacks returned no stacks", nil)
	}
	return &out.Stacks[0], nil
}

// recordProgress reads DescribeStackEvents to maintain the progress view
// named in spec §4.5: the set of completed non-stack resources and the
// count of distinct resource ids seen.
func (h *StackHandle) recordProgress(ctx context.Context, status cfntypes.StackStatus) {
	out, err := h.driver.CFN.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{StackName: &h.StackName})
	if err != nil {
		return
	}
	for _, ev := range out.StackEvents {
		if ev.LogicalResourceId == nil {
			continue
		}
		id := *ev.LogicalResourceId
		h.seen[id] = struct{}{}
		if id == h.StackName {
			continue
		}
		if ev.ResourceStatus == cfntypes.ResourceStatusCreateComplete {
			h.done[id] = struct{}{}
		}
	}
	dlog.Debugf(ctx, "stack %s: status=%s resources_seen=%d resources_done=%d", h.StackName, status, len(h.seen), len(h.done))
}

func (h *StackHandle) extractResult(ctx context.Context, stack *cfntypes.Stack) (*StackResult, error) {
	var ip, instanceID string
	for _, o := range stack.Outputs {
		if o.OutputKey == nil || o.OutputValue == nil {
			continue
		}
		switch *o.OutputKey {
		case "ProxyPublicIP":
			ip = *o.OutputValue
		case "ProxyInstanceId":
			instanceID = *o.OutputValue
		}
	}
	if ip == "" || instanceID == "" {
		return nil, errkind.New(errkind.ErrUnexpectedStackState, "stack completed without expected outputs", nil)
	}

	launch := time.Time{}
	out, err := h.driver.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}})
	if err == nil {
		for _, r := range out.Reservations {
			for _, inst := range r.Instances {
				if inst.LaunchTime != nil {
					launch = *inst.LaunchTime
				}
			}
		}
	} else {
		dlog.Warnf(ctx, "stack %s: DescribeInstances failed, launch time unavailable: %v", h.StackName, err)
	}

	dlog.Infof(ctx, "stack %s: create complete, proxy public ip %s", h.StackName, ip)
	return &StackResult{ProxyPublicIP: ip, ProxyInstanceID: instanceID, LaunchTime: launch}, nil
}
