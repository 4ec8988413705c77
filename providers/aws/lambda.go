package aws

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/provider"
)

// LambdaAPI is the subset of the Lambda client the function and permission
// drivers use.
type LambdaAPI interface {
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, params *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
	AddPermission(ctx context.Context, params *lambda.AddPermissionInput, optFns ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error)
	GetPolicy(ctx context.Context, params *lambda.GetPolicyInput, optFns ...func(*lambda.Options)) (*lambda.GetPolicyOutput, error)
	RemovePermission(ctx context.Context, params *lambda.RemovePermissionInput, optFns ...func(*lambda.Options)) (*lambda.RemovePermissionOutput, error)
}

// updateWait bounds the wait for a code update to finish before the
// configuration update is sent.
const updateWait = 2 * time.Minute

type FunctionConfig struct {
	FunctionName string            `json:"functionName"`
	Runtime      string            `json:"runtime"`
	Handler      string            `json:"handler"`
	Role         string            `json:"role"`
	Code         string            `json:"code"`
	Timeout      int32             `json:"timeout"`
	MemorySize   int32             `json:"memorySize"`
	Environment  map[string]string `json:"environment"`
}

// FunctionDriver manages the OCR function. Lambda has no cheap existence
// check that is safer than creating, so the probe is folded into Create.
type FunctionDriver struct {
	client LambdaAPI
}

func NewFunctionDriver(client LambdaAPI) *FunctionDriver {
	return &FunctionDriver{client: client}
}

func (d *FunctionDriver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	return ir.Observation{}, provider.ErrProbeFolded
}

func (d *FunctionDriver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[FunctionConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	zipBytes, err := loadCode(desired.Code)
	if err != nil {
		return ir.Observation{}, err
	}

	input := &lambda.CreateFunctionInput{
		FunctionName: aws.String(desired.FunctionName),
		Runtime:      types.Runtime(desired.Runtime),
		Handler:      aws.String(desired.Handler),
		Role:         aws.String(desired.Role),
		Code:         &types.FunctionCode{ZipFile: zipBytes},
	}
	if desired.Timeout > 0 {
		input.Timeout = aws.Int32(desired.Timeout)
	}
	if desired.MemorySize > 0 {
		input.MemorySize = aws.Int32(desired.MemorySize)
	}
	if len(desired.Environment) > 0 {
		input.Environment = &types.Environment{Variables: desired.Environment}
	}

	resp, err := d.client.CreateFunction(ctx, input)
	if err != nil {
		return ir.Observation{}, fmt.Errorf("failed to create function: %w", err)
	}
	return functionObservation(aws.ToString(resp.FunctionName), aws.ToString(resp.FunctionArn)), nil
}

func (d *FunctionDriver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[FunctionConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	resp, err := d.client.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(desired.FunctionName)})
	if err != nil {
		return ir.Observation{}, fmt.Errorf("failed to get function: %w", err)
	}
	if resp.Configuration == nil {
		return ir.Observation{}, fmt.Errorf("function %s returned no configuration", desired.FunctionName)
	}
	return functionObservation(aws.ToString(resp.Configuration.FunctionName), aws.ToString(resp.Configuration.FunctionArn)), nil
}

// Update pushes the current code and then the configuration. Lambda rejects
// a configuration change while the code update is still in progress.
func (d *FunctionDriver) Update(ctx context.Context, req *provider.Request, existing ir.Observation) (ir.Observation, error) {
	desired, err := decode[FunctionConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	zipBytes, err := loadCode(desired.Code)
	if err != nil {
		return ir.Observation{}, err
	}

	if _, err := d.client.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(desired.FunctionName),
		ZipFile:      zipBytes,
	}); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to update function code: %w", err)
	}

	waiter := lambda.NewFunctionUpdatedV2Waiter(d.client)
	if err := waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(desired.FunctionName)}, updateWait); err != nil {
		return ir.Observation{}, fmt.Errorf("failed waiting for function code update: %w", err)
	}

	input := &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(desired.FunctionName),
		Runtime:      types.Runtime(desired.Runtime),
		Handler:      aws.String(desired.Handler),
		Role:         aws.String(desired.Role),
	}
	if desired.Timeout > 0 {
		input.Timeout = aws.Int32(desired.Timeout)
	}
	if desired.MemorySize > 0 {
		input.MemorySize = aws.Int32(desired.MemorySize)
	}
	if len(desired.Environment) > 0 {
		input.Environment = &types.Environment{Variables: desired.Environment}
	}
	if _, err := d.client.UpdateFunctionConfiguration(ctx, input); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to update function configuration: %w", err)
	}

	return existing, nil
}

func functionObservation(name, functionARN string) ir.Observation {
	return ir.Observation{
		Present:    true,
		ID:         name,
		ARN:        functionARN,
		Attributes: map[string]string{ir.AttrName: name},
	}
}

// loadCode reads the deployment package. A bare executable is wrapped into
// an in-memory zip under its base name, which for custom runtimes must be
// "bootstrap".
func loadCode(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("function code path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read code file: %w", err)
	}
	if bytes.HasPrefix(raw, []byte("PK\x03\x04")) {
		return raw, nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	hdr := &zip.FileHeader{Name: filepath.Base(path), Method: zip.Deflate}
	hdr.SetMode(0o755)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return nil, fmt.Errorf("failed to package code: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to package code: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to package code: %w", err)
	}
	return buf.Bytes(), nil
}

type PermissionConfig struct {
	FunctionName string `json:"functionName"`
	FunctionArn  string `json:"functionArn"`
	APIID        string `json:"apiId"`
	Region       string `json:"region"`
	StatementID  string `json:"statementId"`
	Action       string `json:"action"`
	Principal    string `json:"principal"`
}

// SourceARN is the execute-api pattern allowed to invoke the function. The
// account is taken from the function ARN.
func (c *PermissionConfig) SourceARN() (string, error) {
	parsed, err := arn.Parse(c.FunctionArn)
	if err != nil {
		return "", fmt.Errorf("invalid function arn %q: %w", c.FunctionArn, err)
	}
	region := c.Region
	if region == "" {
		region = parsed.Region
	}
	return fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/*/*", region, parsed.AccountID, c.APIID), nil
}

// PermissionDriver manages the resource policy statement that lets the
// gateway invoke the function. A conflicting statement id means the
// statement already exists; it is resolved from the function policy and
// replaced by Update when it names a different API.
type PermissionDriver struct {
	client LambdaAPI
}

func NewPermissionDriver(client LambdaAPI) *PermissionDriver {
	return &PermissionDriver{client: client}
}

func (d *PermissionDriver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	return ir.Observation{}, provider.ErrProbeFolded
}

func (d *PermissionDriver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[PermissionConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	sourceARN, err := desired.SourceARN()
	if err != nil {
		return ir.Observation{}, err
	}
	return d.add(ctx, desired, sourceARN)
}

// Update replaces a statement whose source ARN names another API, as left
// behind when the HTTP API was recreated under a new id. A statement that
// already names the desired caller is kept as is.
func (d *PermissionDriver) Update(ctx context.Context, req *provider.Request, existing ir.Observation) (ir.Observation, error) {
	desired, err := decode[PermissionConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	sourceARN, err := desired.SourceARN()
	if err != nil {
		return ir.Observation{}, err
	}
	if existing.Attributes["source-arn"] == sourceARN {
		return existing, nil
	}

	if _, err := d.client.RemovePermission(ctx, &lambda.RemovePermissionInput{
		FunctionName: aws.String(desired.FunctionName),
		StatementId:  aws.String(desired.StatementID),
	}); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to remove stale permission %s (source %s): %w",
			desired.StatementID, existing.Attributes["source-arn"], err)
	}
	return d.add(ctx, desired, sourceARN)
}

func (d *PermissionDriver) add(ctx context.Context, desired *PermissionConfig, sourceARN string) (ir.Observation, error) {
	if _, err := d.client.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(desired.FunctionName),
		StatementId:  aws.String(desired.StatementID),
		Action:       aws.String(desired.Action),
		Principal:    aws.String(desired.Principal),
		SourceArn:    aws.String(sourceARN),
	}); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to add permission: %w", err)
	}
	return permissionObservation(desired.StatementID, sourceARN), nil
}

func (d *PermissionDriver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[PermissionConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}

	resp, err := d.client.GetPolicy(ctx, &lambda.GetPolicyInput{FunctionName: aws.String(desired.FunctionName)})
	if err != nil {
		return ir.Observation{}, fmt.Errorf("failed to get function policy: %w", err)
	}

	var policy struct {
		Statement []struct {
			Sid       string `json:"Sid"`
			Condition struct {
				ArnLike map[string]string `json:"ArnLike"`
			} `json:"Condition"`
		} `json:"Statement"`
	}
	if err := json.Unmarshal([]byte(aws.ToString(resp.Policy)), &policy); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to parse function policy: %w", err)
	}
	for _, st := range policy.Statement {
		if st.Sid == desired.StatementID {
			return permissionObservation(st.Sid, st.Condition.ArnLike["AWS:SourceArn"]), nil
		}
	}
	return ir.Observation{}, fmt.Errorf("statement %s not found in policy of %s", desired.StatementID, desired.FunctionName)
}

func permissionObservation(statementID, sourceARN string) ir.Observation {
	return ir.Observation{
		Present:    true,
		ID:         statementID,
		Attributes: map[string]string{"source-arn": sourceARN},
	}
}
