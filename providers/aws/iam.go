package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/provider"
)

// IAMAPI is the subset of the IAM client the role driver uses.
type IAMAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	UpdateAssumeRolePolicy(ctx context.Context, params *iam.UpdateAssumeRolePolicyInput, optFns ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error)
}

type RoleConfig struct {
	Name             string          `json:"name"`
	AssumeRolePolicy json.RawMessage `json:"assumeRolePolicy"`
	PolicyName       string          `json:"policyName"`
	Policy           json.RawMessage `json:"policy"`
}

// RoleDriver manages the function's execution role and its inline policy.
// Both policy documents are rewritten on every run.
type RoleDriver struct {
	client IAMAPI
}

func NewRoleDriver(client IAMAPI) *RoleDriver {
	return &RoleDriver{client: client}
}

func (d *RoleDriver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[RoleConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	return d.get(ctx, desired.Name)
}

func (d *RoleDriver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[RoleConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}

	resp, err := d.client.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(desired.Name),
		AssumeRolePolicyDocument: aws.String(string(desired.AssumeRolePolicy)),
	})
	if err != nil {
		return ir.Observation{}, fmt.Errorf("failed to create role: %w", err)
	}
	if err := d.putPolicy(ctx, desired); err != nil {
		return ir.Observation{}, err
	}

	return roleObservation(aws.ToString(resp.Role.RoleName), aws.ToString(resp.Role.Arn)), nil
}

func (d *RoleDriver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	return d.Probe(ctx, req)
}

func (d *RoleDriver) Update(ctx context.Context, req *provider.Request, existing ir.Observation) (ir.Observation, error) {
	desired, err := decode[RoleConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}

	if _, err := d.client.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
		RoleName:       aws.String(desired.Name),
		PolicyDocument: aws.String(string(desired.AssumeRolePolicy)),
	}); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to update trust policy: %w", err)
	}
	if err := d.putPolicy(ctx, desired); err != nil {
		return ir.Observation{}, err
	}
	return existing, nil
}

func (d *RoleDriver) get(ctx context.Context, name string) (ir.Observation, error) {
	resp, err := d.client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		return ir.Observation{}, fmt.Errorf("failed to get role: %w", err)
	}
	return roleObservation(aws.ToString(resp.Role.RoleName), aws.ToString(resp.Role.Arn)), nil
}

func (d *RoleDriver) putPolicy(ctx context.Context, desired *RoleConfig) error {
	if desired.PolicyName == "" || len(desired.Policy) == 0 {
		return nil
	}
	_, err := d.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(desired.Name),
		PolicyName:     aws.String(desired.PolicyName),
		PolicyDocument: aws.String(string(desired.Policy)),
	})
	if err != nil {
		return fmt.Errorf("failed to put role policy: %w", err)
	}
	return nil
}

func roleObservation(name, arn string) ir.Observation {
	return ir.Observation{
		Present:    true,
		ID:         name,
		ARN:        arn,
		Attributes: map[string]string{ir.AttrName: name},
	}
}
