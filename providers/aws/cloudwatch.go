package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/provider"
)

// LogsAPI is the subset of the CloudWatch Logs client the log group driver uses.
type LogsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
}

type LogGroupConfig struct {
	LogGroupName    string `json:"logGroupName"`
	RetentionInDays int32  `json:"retentionInDays"`
}

// LogGroupDriver pre-creates the function's log group so its retention is
// managed instead of the never-expire default Lambda would give it.
type LogGroupDriver struct {
	client LogsAPI
}

func NewLogGroupDriver(client LogsAPI) *LogGroupDriver {
	return &LogGroupDriver{client: client}
}

func (d *LogGroupDriver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[LogGroupConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	group, err := d.find(ctx, desired.LogGroupName)
	if err != nil {
		return ir.Observation{}, err
	}
	if group == nil {
		return ir.Absent(), nil
	}
	return logGroupObservation(group), nil
}

func (d *LogGroupDriver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[LogGroupConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	if _, err := d.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(desired.LogGroupName),
	}); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to create log group: %w", err)
	}
	if err := d.putRetention(ctx, desired); err != nil {
		return ir.Observation{}, err
	}
	return d.Read(ctx, req)
}

func (d *LogGroupDriver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[LogGroupConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	group, err := d.find(ctx, desired.LogGroupName)
	if err != nil {
		return ir.Observation{}, err
	}
	if group == nil {
		return ir.Observation{}, &smithy.GenericAPIError{
			Code:    "ResourceNotFoundException",
			Message: fmt.Sprintf("log group %s not found", desired.LogGroupName),
		}
	}
	return logGroupObservation(group), nil
}

func (d *LogGroupDriver) Update(ctx context.Context, req *provider.Request, existing ir.Observation) (ir.Observation, error) {
	desired, err := decode[LogGroupConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	if err := d.putRetention(ctx, desired); err != nil {
		return ir.Observation{}, err
	}
	return existing, nil
}

// find pages through groups sharing the name as prefix and returns the exact match.
func (d *LogGroupDriver) find(ctx context.Context, name string) (*types.LogGroup, error) {
	input := &cloudwatchlogs.DescribeLogGroupsInput{LogGroupNamePrefix: aws.String(name)}
	for {
		resp, err := d.client.DescribeLogGroups(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to describe log groups: %w", err)
		}
		for i := range resp.LogGroups {
			if aws.ToString(resp.LogGroups[i].LogGroupName) == name {
				return &resp.LogGroups[i], nil
			}
		}
		if resp.NextToken == nil {
			return nil, nil
		}
		input.NextToken = resp.NextToken
	}
}

func (d *LogGroupDriver) putRetention(ctx context.Context, desired *LogGroupConfig) error {
	if desired.RetentionInDays <= 0 {
		return nil
	}
	if _, err := d.client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(desired.LogGroupName),
		RetentionInDays: aws.Int32(desired.RetentionInDays),
	}); err != nil {
		return fmt.Errorf("failed to put retention policy: %w", err)
	}
	return nil
}

func logGroupObservation(group *types.LogGroup) ir.Observation {
	name := aws.ToString(group.LogGroupName)
	return ir.Observation{
		Present:    true,
		ID:         name,
		ARN:        aws.ToString(group.Arn),
		Attributes: map[string]string{ir.AttrName: name},
	}
}
