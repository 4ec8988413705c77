package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/provider"
)

// S3API is the subset of the S3 client the bucket driver uses.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

type BucketConfig struct {
	Bucket string `json:"bucket"`
	Region string `json:"region"`
}

// BucketDriver manages the document bucket. Bucket settings are not
// reconciled after creation.
type BucketDriver struct {
	client S3API
	region string
}

func NewBucketDriver(client S3API, region string) *BucketDriver {
	return &BucketDriver{client: client, region: region}
}

func (d *BucketDriver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[BucketConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	if _, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(desired.Bucket)}); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	return bucketObservation(desired.Bucket), nil
}

func (d *BucketDriver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[BucketConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(desired.Bucket)}
	region := desired.Region
	if region == "" {
		region = d.region
	}
	// us-east-1 rejects an explicit location constraint.
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	if _, err := d.client.CreateBucket(ctx, input); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to create bucket: %w", err)
	}
	return bucketObservation(desired.Bucket), nil
}

func (d *BucketDriver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	return d.Probe(ctx, req)
}

func bucketObservation(name string) ir.Observation {
	arn := "arn:aws:s3:::" + name
	return ir.Observation{
		Present: true,
		ID:      name,
		ARN:     arn,
		Attributes: map[string]string{
			ir.AttrName:       name,
			ir.AttrObjectsARN: arn + "/*",
		},
	}
}
