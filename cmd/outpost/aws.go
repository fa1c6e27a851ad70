package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/spf13/cobra"

	"github.com/fossable/outpost/internal/config"
	"github.com/fossable/outpost/internal/coordinator"
	"github.com/fossable/outpost/internal/dashboard"
	"github.com/fossable/outpost/pkg/awsstack"
	"github.com/fossable/outpost/pkg/subnet"
	"github.com/fossable/outpost/pkg/tunnel"
	"github.com/fossable/outpost/pkg/wgkeys"
)

func awsCommand(global *globalFlags, env config.Env) *cobra.Command {
	var flags config.AWSFlags
	var accessKey, secretKey string

	cmd := &cobra.Command{
		Use:   "aws",
		Short: "Provision the proxy on AWS (CloudFormation + EC2 + Route53).",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.UploadLimitMbps = global.uploadLimitMbps
			flags.DownloadLimitMbps = global.downloadLimitMbps
			if flags.InstanceType == "" {
				flags.InstanceType = env.InstanceType
			}
			if flags.HostedZoneID == "" {
				flags.HostedZoneID = env.HostedZoneID
			}

			deployment, err := flags.Validate()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, err := loadAWSConfig(ctx, deployment.Region, accessKey, secretKey)
			if err != nil {
				return err
			}

			deps := coordinator.Deps{
				WGToolchain:    wgkeys.WG{Binary: env.WireGuardBin},
				InterfaceAddrs: subnet.DefaultInterfaceAddrs,
				AWSDriver: &awsstack.Driver{
					CFN:     cloudformation.NewFromConfig(cfg),
					EC2:     ec2.NewFromConfig(cfg),
					Route53: route53.NewFromConfig(cfg),
				},
				ImagePublisher:  awsstack.DefaultImagePublisher,
				TunnelToolchain: tunnel.WGQuick{Binary: env.WGQuickBin},
				HTTPClient:      &http.Client{Timeout: 10 * time.Second},
				IPEchoURL:       env.IPEchoURL,
				Dashboard:       dashboard.NewAppState(),
				Renderer:        dashboard.NotImplementedRenderer{},
				DashboardAddr:   env.DashboardAddr,
			}

			return coordinator.Run(ctx, deployment, deps)
		},
	}

	cmd.Flags().StringArrayVar(&flags.Ingress, "ingress", nil, "public endpoint to accept traffic on (scheme://host:port), repeatable")
	cmd.Flags().StringVar(&flags.Origin, "origin", "", "local endpoint to forward traffic to (scheme://host[:port])")
	cmd.Flags().StringSliceVar(&flags.Regions, "regions", []string{"us-east-2"}, "candidate AWS regions, comma-separated; only the first is used")
	cmd.Flags().StringVar(&flags.InstanceType, "instance-type", "", "EC2 instance type for the proxy (default from OUTPOST_INSTANCE_TYPE or t4g.nano)")
	cmd.Flags().StringVar(&flags.HostedZoneID, "hosted-zone-id", "", "Route53 hosted zone id owning the ingress host")
	cmd.Flags().BoolVar(&flags.Debug, "debug", false, "open SSH access to the proxy from the origin's public IP")
	cmd.Flags().BoolVar(&flags.UseCloudFront, "use-cloudfront", false, "front the proxy with a CloudFront distribution")
	cmd.Flags().StringVar(&accessKey, "access-key-id", os.Getenv("AWS_ACCESS_KEY_ID"), "AWS access key id")
	cmd.Flags().StringVar(&secretKey, "secret-access-key", os.Getenv("AWS_SECRET_ACCESS_KEY"), "AWS secret access key")

	return cmd
}

func loadAWSConfig(ctx context.Context, region, accessKey, secretKey string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
