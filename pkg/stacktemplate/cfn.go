package stacktemplate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// M is a convenience alias for building the declarative JSON tree; key
// order is immaterial to CloudFormation and spec §6 only asserts substring
// presence, not byte equality, across renders.
type M = map[string]interface{}

// BuildStack renders the full CloudFormation template described in spec
// §4.4, following the resource-logical-ID naming of
// _examples/original_source/src/aws/cloudformation.rs so operators reading
// stack events recognize the same names.
func BuildStack(p Params) (string, error) {
	bootScript, err := RenderBootScript(p)
	if err != nil {
		return "", err
	}

	userData, err := userDataWithWaitHandle(bootScript)
	if err != nil {
		return "", err
	}

	tagName := func(suffix string) []M {
		return []M{{"Key": "Name", "Value": fmt.Sprintf("outpost-%s%s", p.StackName, suffix)}}
	}

	resources := M{
		"VPC": M{
			"Type": "AWS::EC2::VPC",
			"Properties": M{
				"CidrBlock":          "10.0.0.0/16",
				"EnableDnsHostnames": true,
				"EnableDnsSupport":   true,
				"Tags":               tagName(""),
			},
		},
		"InternetGateway": M{
			"Type":       "AWS::EC2::InternetGateway",
			"Properties": M{"Tags": tagName("-igw")},
		},
		"AttachGateway": M{
			"Type": "AWS::EC2::VPCGatewayAttachment",
			"Properties": M{
				"VpcId":             M{"Ref": "VPC"},
				"InternetGatewayId": M{"Ref": "InternetGateway"},
			},
		},
		"PublicSubnet": M{
			"Type": "AWS::EC2::Subnet",
			"Properties": M{
				"VpcId":               M{"Ref": "VPC"},
				"CidrBlock":           "10.0.1.0/24",
				"MapPublicIpOnLaunch": true,
				"Tags":                tagName("-public"),
			},
		},
		"PublicRouteTable": M{
			"Type": "AWS::EC2::RouteTable",
			"Properties": M{
				"VpcId": M{"Ref": "VPC"},
				"Tags":  tagName("-public-rt"),
			},
		},
		"PublicRoute": M{
			"Type":      "AWS::EC2::Route",
			"DependsOn": "AttachGateway",
			"Properties": M{
				"RouteTableId":         M{"Ref": "PublicRouteTable"},
				"DestinationCidrBlock": "0.0.0.0/0",
				"GatewayId":            M{"Ref": "InternetGateway"},
			},
		},
		"SubnetRouteTableAssociation": M{
			"Type": "AWS::EC2::SubnetRouteTableAssociation",
			"Properties": M{
				"SubnetId":     M{"Ref": "PublicSubnet"},
				"RouteTableId": M{"Ref": "PublicRouteTable"},
			},
		},
		"InstanceSecurityGroup": M{
			"Type": "AWS::EC2::SecurityGroup",
			"Properties": M{
				"GroupDescription":     "outpost proxy ingress",
				"VpcId":                M{"Ref": "VPC"},
				"SecurityGroupIngress": securityGroupIngress(p),
				"SecurityGroupEgress": []M{{
					"IpProtocol": "-1",
					"CidrIp":     "0.0.0.0/0",
				}},
				"Tags": tagName("-sg"),
			},
		},
		"InstanceRole": M{
			"Type": "AWS::IAM::Role",
			"Properties": M{
				"AssumeRolePolicyDocument": M{
					"Version": "2012-10-17",
					"Statement": []M{{
						"Effect":    "Allow",
						"Principal": M{"Service": "ec2.amazonaws.com"},
						"Action":    "sts:AssumeRole",
					}},
				},
				"Policies": []M{{
					"PolicyName": "outpost-self-destruct",
					"PolicyDocument": M{
						"Version": "2012-10-17",
						"Statement": []M{{
							"Effect": "Allow",
							"Action": []string{
								"cloudformation:DeleteStack",
								"cloudformation:DescribeStacks",
								"cloudformation:DescribeStackResource",
							},
							"Resource": M{"Ref": "AWS::StackId"},
						}},
					},
				}},
			},
		},
		"InstanceProfile": M{
			"Type": "AWS::IAM::InstanceProfile",
			"Properties": M{
				"Roles": []M{{"Ref": "InstanceRole"}},
			},
		},
		"ProxyInstance": M{
			"Type": "AWS::EC2::Instance",
			"Properties": M{
				"InstanceType":       p.InstanceType,
				"ImageId":            M{"Ref": "NixOSAMI"},
				"SubnetId":           M{"Ref": "PublicSubnet"},
				"SecurityGroupIds":   []M{{"Ref": "InstanceSecurityGroup"}},
				"IamInstanceProfile": M{"Ref": "InstanceProfile"},
				"UserData":           M{"Fn::Base64": userData},
				"Tags":               tagName(""),
			},
		},
		"WaitHandle": M{
			"Type": "AWS::CloudFormation::WaitConditionHandle",
		},
		"WaitCondition": M{
			"Type":      "AWS::CloudFormation::WaitCondition",
			"DependsOn": "ProxyInstance",
			"Properties": M{
				"Handle":  M{"Ref": "WaitHandle"},
				"Timeout": "600",
			},
		},
	}

	if p.UseCloudFront {
		resources["CDNDistribution"] = M{
			"Type":      "AWS::CloudFront::Distribution",
			"DependsOn": "WaitCondition",
			"Properties": M{
				"DistributionConfig": M{
					"Enabled": true,
					"Origins": []M{{
						"Id":         "ProxyOrigin",
						"DomainName": M{"Fn::GetAtt": []string{"ProxyInstance", "PublicDnsName"}},
						"CustomOriginConfig": M{
							"OriginProtocolPolicy": "https-only",
						},
					}},
					"DefaultCacheBehavior": M{
						"TargetOriginId":       "ProxyOrigin",
						"ViewerProtocolPolicy": "redirect-to-https",
						"ForwardedValues": M{
							"QueryString": true,
							"Cookies":     M{"Forward": "all"},
							"Headers":     []string{"*"},
						},
						"MinTTL":     0,
						"DefaultTTL": 0,
						"MaxTTL":     0,
					},
				},
			},
		}
		resources["DNSRecord"] = M{
			"Type": "AWS::Route53::RecordSet",
			"Properties": M{
				"HostedZoneId": M{"Ref": "HostedZoneId"},
				"Name":         dnsName(p.IngressHost),
				"Type":         "A",
				"AliasTarget": M{
					"DNSName":              M{"Fn::GetAtt": []string{"CDNDistribution", "DomainName"}},
					"HostedZoneId":         "Z2FDTNDATAQYW2", // CloudFront's fixed hosted-zone ID
					"EvaluateTargetHealth": false,
				},
			},
		}
	} else {
		resources["DNSRecord"] = M{
			"Type":      "AWS::Route53::RecordSet",
			"DependsOn": "WaitCondition",
			"Properties": M{
				"HostedZoneId":    M{"Ref": "HostedZoneId"},
				"Name":            dnsName(p.IngressHost),
				"Type":            "A",
				"TTL":             "60",
				"ResourceRecords": []M{{"Fn::GetAtt": []string{"ProxyInstance", "PublicIp"}}},
			},
		}
	}

	template := M{
		"AWSTemplateFormatVersion": "2010-09-09",
		"Description":              "Outpost proxy: VPC, WireGuard tunnel endpoint, and self-destruct watchdog",
		"Parameters": M{
			"HostedZoneId": M{
				"Type":        "String",
				"Description": "Route53 hosted zone ID for the DNS record",
			},
			"NixOSAMI": M{
				"Type":        "AWS::EC2::Image::Id",
				"Description": "NixOS AMI ID matching the instance architecture",
			},
		},
		"Resources": resources,
		"Outputs": M{
			"ProxyPublicIP": M{
				"Description": "Public IP address of the proxy instance",
				"Value":       M{"Fn::GetAtt": []string{"ProxyInstance", "PublicIp"}},
			},
			"ProxyInstanceId": M{
				"Description": "Instance ID of the proxy",
				"Value":       M{"Ref": "ProxyInstance"},
			},
		},
	}

	out, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling CloudFormation template: %w", err)
	}
	return string(out), nil
}

// userDataWithWaitHandle splices the stack's own WaitConditionHandle
// reference into the rendered boot script at WaitHandlePlaceholder via
// Fn::Join, so the instance's success signal actually reaches a live
// presigned URL instead of an empty string (spec §4.4, §6). Fn::Sub isn't
// usable here: the script is full of Nix's own "${...}" interpolations,
// which Fn::Sub would try and fail to resolve as template parameters.
func userDataWithWaitHandle(bootScript string) (M, error) {
	parts := strings.SplitN(bootScript, WaitHandlePlaceholder, 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("boot script missing %s placeholder", WaitHandlePlaceholder)
	}
	return M{"Fn::Join": []interface{}{"", []interface{}{
		parts[0],
		M{"Ref": "WaitHandle"},
		parts[1],
	}}}, nil
}

// dnsName appends the trailing dot Route53 record names carry, matching the
// original implementation's format!("{}.", host).
func dnsName(host string) string {
	return host + "."
}

func securityGroupIngress(p Params) []M {
	rules := []M{{
		"IpProtocol": "udp",
		"FromPort":   51820,
		"ToPort":     51820,
		"CidrIp":     p.OriginPublicIP + "/32",
	}}
	for _, m := range p.PortMappings {
		rules = append(rules, M{
			"IpProtocol": string(m.Protocol),
			"FromPort":   m.Port,
			"ToPort":     m.Port,
			"CidrIp":     "0.0.0.0/0",
		})
	}
	if p.Debug {
		rules = append(rules, M{
			"IpProtocol": "tcp",
			"FromPort":   22,
			"ToPort":     22,
			"CidrIp":     p.OriginPublicIP + "/32",
		})
	}
	return rules
}
