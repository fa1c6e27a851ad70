package awsstack

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/fossable/outpost/pkg/errkind"
)

// isStackDisappeared reports whether err is CloudFormation's "stack does not
// exist" validation error, which spec §4.5 treats specially depending on
// whether it surfaces during wait (fatal) or cleanup (success).
func isStackDisappeared(err error) bool {
	if errors.Is(err, errkind.ErrStackDisappeared) {
		return true
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

// classifyCloudError maps a raw AWS SDK error into one of the remote-call
// error kinds from spec §7: a transient-looking failure (throttling,
// connection reset) is *NetworkTransient*, and everything else that isn't a
// disappeared stack is *CloudRejected*.
func classifyCloudError(err error, msg string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "RequestLimitExceeded", "TooManyRequestsException":
			return errkind.New(errkind.ErrNetworkTransient, msg, err)
		}
	}
	return errkind.New(errkind.ErrCloudRejected, msg, err)
}
