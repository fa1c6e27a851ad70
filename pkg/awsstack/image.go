package awsstack

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/fossable/outpost/pkg/errkind"
	"github.com/fossable/outpost/pkg/stacktemplate"
)

// ImagePublisher names the well-known account and name-prefix the boot
// image is searched under. Per spec §4.4/Open Questions this is hard-coded
// to one OS family; multi-family selection is out of scope.
type ImagePublisher struct {
	OwnerID    string
	NamePrefix string
}

// DefaultImagePublisher is NixOS's official AMI publisher account.
var DefaultImagePublisher = ImagePublisher{
	OwnerID:    "427812963091",
	NamePrefix: "nixos/",
}

// FindImage returns the newest image matching the publisher and
// architecture, per spec §4.5's deploy-time image lookup.
func FindImage(ctx context.Context, client EC2API, pub ImagePublisher, arch stacktemplate.Architecture) (string, error) {
	out, err := client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{pub.OwnerID},
		Filters: []types.Filter{
			{Name: strPtr("name"), Values: []string{pub.NamePrefix + "*"}},
			{Name: strPtr("architecture"), Values: []string{string(arch)}},
			{Name: strPtr("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return "", classifyCloudError(err, "looking up boot image")
	}
	if len(out.Images) == 0 {
		return "", errkind.New(errkind.ErrCloudRejected, fmt.Sprintf("no images found for publisher %q architecture %s", pub.NamePrefix, arch), nil)
	}

	images := out.Images
	sort.Slice(images, func(i, j int) bool {
		return derefStr(images[i].CreationDate) > derefStr(images[j].CreationDate)
	})
	return derefStr(images[0].ImageId), nil
}

func strPtr(s string) *string { return &s }

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
