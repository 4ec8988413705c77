package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/provider"
)

// Clients holds one SDK client per service the deployment touches.
type Clients struct {
	Region     string
	S3         *s3.Client
	IAM        *iam.Client
	Lambda     *lambda.Client
	Logs       *cloudwatchlogs.Client
	APIGateway *apigatewayv2.Client
	SSM        *ssm.Client
	Textract   *textract.Client
}

// LoadConfig resolves credentials through the default chain with an explicit
// region and, when set, a shared-config profile.
func LoadConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return cfg, nil
}

func NewClients(cfg aws.Config) *Clients {
	return &Clients{
		Region:     cfg.Region,
		S3:         s3.NewFromConfig(cfg),
		IAM:        iam.NewFromConfig(cfg),
		Lambda:     lambda.NewFromConfig(cfg),
		Logs:       cloudwatchlogs.NewFromConfig(cfg),
		APIGateway: apigatewayv2.NewFromConfig(cfg),
		SSM:        ssm.NewFromConfig(cfg),
		Textract:   textract.NewFromConfig(cfg),
	}
}

// API bundles the narrow client interfaces the drivers are built on.
type API struct {
	Region  string
	S3      S3API
	IAM     IAMAPI
	Lambda  LambdaAPI
	Logs    LogsAPI
	Gateway GatewayAPI
}

// API returns the driver-facing view of the clients.
func (c *Clients) API() API {
	return API{
		Region:  c.Region,
		S3:      c.S3,
		IAM:     c.IAM,
		Lambda:  c.Lambda,
		Logs:    c.Logs,
		Gateway: c.APIGateway,
	}
}

// Register installs a driver for every kind in the OCR topology.
func Register(reg *provider.Registry, api API) {
	reg.Register(ir.KindBucket, NewBucketDriver(api.S3, api.Region))
	reg.Register(ir.KindRole, NewRoleDriver(api.IAM))
	reg.Register(ir.KindFunction, NewFunctionDriver(api.Lambda))
	reg.Register(ir.KindPermission, NewPermissionDriver(api.Lambda))
	reg.Register(ir.KindLogGroup, NewLogGroupDriver(api.Logs))
	reg.Register(ir.KindAPI, NewAPIDriver(api.Gateway))
	reg.Register(ir.KindIntegration, NewIntegrationDriver(api.Gateway))
	reg.Register(ir.KindRoute, NewRouteDriver(api.Gateway))
	reg.Register(ir.KindStage, NewStageDriver(api.Gateway))
}

func decode[T any](req *provider.Request) (*T, error) {
	var desired T
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired: %w", err)
	}
	return &desired, nil
}
