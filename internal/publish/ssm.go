package publish

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMAPI is the subset of the SSM client the parameter sink uses.
type SSMAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SSMParameter stores the endpoint URL in a String parameter, overwriting
// any previous value.
type SSMParameter struct {
	client SSMAPI
	Name   string
}

func NewSSMParameter(client SSMAPI, name string) *SSMParameter {
	return &SSMParameter{client: client, Name: name}
}

func (s *SSMParameter) String() string {
	return "ssm:" + s.Name
}

func (s *SSMParameter) Publish(ctx context.Context, url string) error {
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.Name),
		Value:     aws.String(url),
		Type:      types.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to put parameter %s: %w", s.Name, err)
	}
	return nil
}
