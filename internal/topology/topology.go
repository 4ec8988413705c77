package topology

import (
	"fmt"
	"time"

	"github.com/picklr-io/ocrstack/internal/config"
	"github.com/picklr-io/ocrstack/internal/engine"
	"github.com/picklr-io/ocrstack/internal/ir"
)

// Logical descriptor names.
const (
	Bucket      = "bucket"
	Role        = "role"
	Function    = "function"
	LogGroup    = "log-group"
	API         = "api"
	Integration = "integration"
	Route       = "route"
	Stage       = "stage"
	Permission  = "permission"
)

// EndpointDescriptor is the descriptor whose url attribute is published.
const EndpointDescriptor = Stage

// Build returns the descriptor table for the OCR deployment in declaration
// order. Declaration order is also the tie-break order of the reconciler.
func Build(cfg *config.Config) []*ir.Descriptor {
	descs := []*ir.Descriptor{
		{
			Name: Bucket,
			Kind: ir.KindBucket,
			Properties: map[string]any{
				"bucket": cfg.BucketName,
				"region": cfg.Region,
			},
		},
		{
			Name:        Role,
			Kind:        ir.KindRole,
			SettleAfter: cfg.RoleSettle,
			Properties: map[string]any{
				"name":             cfg.RoleName,
				"assumeRolePolicy": lambdaTrustPolicy(),
				"policyName":       cfg.PolicyName,
				"policy":           functionPolicy(),
			},
		},
		{
			Name: Function,
			Kind: ir.KindFunction,
			Properties: map[string]any{
				"functionName": cfg.FunctionName,
				"runtime":      cfg.Runtime,
				"handler":      cfg.Handler,
				"role":         ir.Ref(Role, ir.AttrARN),
				"code":         cfg.CodePath,
				"timeout":      cfg.FunctionTimeout,
				"memorySize":   cfg.MemorySize,
				"environment": map[string]any{
					"BUCKET_NAME": ir.Ref(Bucket, ir.AttrName),
					"OCR_ENGINE":  "textract",
					"LOG_FORMAT":  "json",
				},
			},
		},
	}

	// The gateway is ordered after the last compute-side descriptor so the
	// table keeps a single terminal descriptor.
	apiAfter := Function
	if cfg.LogRetentionDays > 0 {
		apiAfter = LogGroup
		descs = append(descs, &ir.Descriptor{
			Name:      LogGroup,
			Kind:      ir.KindLogGroup,
			DependsOn: []string{Function},
			Properties: map[string]any{
				"logGroupName":    "/aws/lambda/" + cfg.FunctionName,
				"retentionInDays": cfg.LogRetentionDays,
			},
		})
	}

	descs = append(descs,
		&ir.Descriptor{
			Name:      API,
			Kind:      ir.KindAPI,
			DependsOn: []string{apiAfter},
			Properties: map[string]any{
				"name":         cfg.APIName,
				"protocolType": "HTTP",
				"cors": map[string]any{
					"allowOrigins": []string{"*"},
					"allowHeaders": []string{"Content-Type", "Authorization", "X-Requested-With"},
					"allowMethods": []string{"GET", "POST", "OPTIONS", "PUT", "DELETE"},
					"maxAge":       86400,
				},
			},
		},
		&ir.Descriptor{
			Name: Integration,
			Kind: ir.KindIntegration,
			Properties: map[string]any{
				"apiId":                ir.Ref(API, ir.AttrID),
				"integrationType":      "AWS_PROXY",
				"functionArn":          ir.Ref(Function, ir.AttrARN),
				"region":               cfg.Region,
				"payloadFormatVersion": "2.0",
			},
		},
		&ir.Descriptor{
			Name: Route,
			Kind: ir.KindRoute,
			Each: cfg.Routes,
			Properties: map[string]any{
				"apiId":         ir.Ref(API, ir.AttrID),
				"routeKey":      "${each.value}",
				"integrationId": ir.Ref(Integration, ir.AttrID),
			},
		},
		&ir.Descriptor{
			Name:      Stage,
			Kind:      ir.KindStage,
			DependsOn: []string{Route},
			Properties: map[string]any{
				"apiId":      ir.Ref(API, ir.AttrID),
				"endpoint":   ir.Ref(API, ir.AttrEndpoint),
				"stageName":  cfg.StageName,
				"autoDeploy": true,
			},
		},
		&ir.Descriptor{
			Name:      Permission,
			Kind:      ir.KindPermission,
			DependsOn: []string{Stage},
			Properties: map[string]any{
				"functionName": ir.Ref(Function, ir.AttrName),
				"functionArn":  ir.Ref(Function, ir.AttrARN),
				"apiId":        ir.Ref(API, ir.AttrID),
				"region":       cfg.Region,
				"statementId":  cfg.StatementID,
				"action":       "lambda:InvokeFunction",
				"principal":    "apigateway.amazonaws.com",
			},
		},
	)

	if cfg.OperationTimeout > 0 {
		for _, d := range descs {
			d.Timeout = cfg.OperationTimeout
		}
	}

	return descs
}

func lambdaTrustPolicy() map[string]any {
	return map[string]any{
		"Version": "2012-10-17",
		"Statement": []any{
			map[string]any{
				"Effect":    "Allow",
				"Principal": map[string]any{"Service": "lambda.amazonaws.com"},
				"Action":    "sts:AssumeRole",
			},
		},
	}
}

func functionPolicy() map[string]any {
	return map[string]any{
		"Version": "2012-10-17",
		"Statement": []any{
			map[string]any{
				"Effect":   "Allow",
				"Action":   []any{"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"},
				"Resource": "arn:aws:logs:*:*:*",
			},
			map[string]any{
				"Effect":   "Allow",
				"Action":   []any{"textract:DetectDocumentText", "textract:AnalyzeDocument"},
				"Resource": "*",
			},
			map[string]any{
				"Effect":   "Allow",
				"Action":   []any{"s3:GetObject", "s3:PutObject"},
				"Resource": ir.Ref(Bucket, ir.AttrObjectsARN),
			},
			map[string]any{
				"Effect":   "Allow",
				"Action":   []any{"s3:ListBucket", "s3:GetBucketLocation"},
				"Resource": ir.Ref(Bucket, ir.AttrARN),
			},
		},
	}
}

// Validate checks that the table forms a graph with exactly one root and
// exactly one terminal descriptor, and that the endpoint descriptor exists.
func Validate(descs []*ir.Descriptor) error {
	dag, err := engine.BuildDAG(engine.ExpandEach(descs))
	if err != nil {
		return err
	}
	if roots := dag.Roots(); len(roots) != 1 {
		return fmt.Errorf("topology must have a single root, found %v", roots)
	}
	if sinks := dag.Sinks(); len(sinks) != 1 {
		return fmt.Errorf("topology must have a single terminal descriptor, found %v", sinks)
	}
	if !dag.Has(EndpointDescriptor) {
		return fmt.Errorf("topology has no %s descriptor", EndpointDescriptor)
	}
	return nil
}

// Endpoint returns the public URL resolved for the endpoint descriptor.
func Endpoint(run *ir.Run) (string, error) {
	res, ok := run.Get(EndpointDescriptor)
	if !ok {
		return "", fmt.Errorf("%s was not resolved", EndpointDescriptor)
	}
	url, ok := res.Attr(ir.AttrURL)
	if !ok || url == "" {
		return "", fmt.Errorf("%s has no url attribute", EndpointDescriptor)
	}
	return url, nil
}

// SettleTotal is the longest the run can spend in consistency waits.
func SettleTotal(descs []*ir.Descriptor) time.Duration {
	var total time.Duration
	for _, d := range descs {
		total += d.SettleAfter
	}
	return total
}
