package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"
	"github.com/aws/smithy-go"
	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/provider"
)

// GatewayAPI is the subset of the API Gateway v2 client the gateway drivers use.
type GatewayAPI interface {
	GetApis(ctx context.Context, params *apigatewayv2.GetApisInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.GetApisOutput, error)
	CreateApi(ctx context.Context, params *apigatewayv2.CreateApiInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateApiOutput, error)
	GetIntegrations(ctx context.Context, params *apigatewayv2.GetIntegrationsInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.GetIntegrationsOutput, error)
	CreateIntegration(ctx context.Context, params *apigatewayv2.CreateIntegrationInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateIntegrationOutput, error)
	UpdateIntegration(ctx context.Context, params *apigatewayv2.UpdateIntegrationInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.UpdateIntegrationOutput, error)
	GetRoutes(ctx context.Context, params *apigatewayv2.GetRoutesInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.GetRoutesOutput, error)
	CreateRoute(ctx context.Context, params *apigatewayv2.CreateRouteInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateRouteOutput, error)
	GetStage(ctx context.Context, params *apigatewayv2.GetStageInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.GetStageOutput, error)
	CreateStage(ctx context.Context, params *apigatewayv2.CreateStageInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateStageOutput, error)
}

func notFound(format string, args ...any) error {
	return &smithy.GenericAPIError{Code: "NotFoundException", Message: fmt.Sprintf(format, args...)}
}

// APIGatewayV2 Api

type APIConfig struct {
	Name         string      `json:"name"`
	ProtocolType string      `json:"protocolType"`
	Cors         *CorsConfig `json:"cors"`
}

type CorsConfig struct {
	AllowOrigins []string `json:"allowOrigins"`
	AllowHeaders []string `json:"allowHeaders"`
	AllowMethods []string `json:"allowMethods"`
	MaxAge       int32    `json:"maxAge"`
}

// APIDriver manages the HTTP API. Gateway API names are not unique, so a
// create never conflicts; the probe lists every API and matches the name
// exactly to avoid creating duplicates.
type APIDriver struct {
	client GatewayAPI
}

func NewAPIDriver(client GatewayAPI) *APIDriver {
	return &APIDriver{client: client}
}

func (d *APIDriver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[APIConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}

	input := &apigatewayv2.GetApisInput{}
	for {
		resp, err := d.client.GetApis(ctx, input)
		if err != nil {
			return ir.Observation{}, fmt.Errorf("failed to list APIs: %w", err)
		}
		for _, item := range resp.Items {
			if aws.ToString(item.Name) == desired.Name {
				return apiObservation(aws.ToString(item.ApiId), aws.ToString(item.Name), aws.ToString(item.ApiEndpoint)), nil
			}
		}
		if resp.NextToken == nil {
			return ir.Absent(), nil
		}
		input.NextToken = resp.NextToken
	}
}

func (d *APIDriver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[APIConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}

	input := &apigatewayv2.CreateApiInput{
		Name:         aws.String(desired.Name),
		ProtocolType: types.ProtocolType(desired.ProtocolType),
	}
	if desired.Cors != nil {
		input.CorsConfiguration = &types.Cors{
			AllowOrigins: desired.Cors.AllowOrigins,
			AllowHeaders: desired.Cors.AllowHeaders,
			AllowMethods: desired.Cors.AllowMethods,
		}
		if desired.Cors.MaxAge > 0 {
			input.CorsConfiguration.MaxAge = aws.Int32(desired.Cors.MaxAge)
		}
	}

	resp, err := d.client.CreateApi(ctx, input)
	if err != nil {
		return ir.Observation{}, fmt.Errorf("failed to create API: %w", err)
	}
	return apiObservation(aws.ToString(resp.ApiId), aws.ToString(resp.Name), aws.ToString(resp.ApiEndpoint)), nil
}

func (d *APIDriver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	obs, err := d.Probe(ctx, req)
	if err != nil {
		return ir.Observation{}, err
	}
	if !obs.Present {
		return ir.Observation{}, notFound("API %s not found", req.Name)
	}
	return obs, nil
}

func apiObservation(id, name, endpoint string) ir.Observation {
	return ir.Observation{
		Present: true,
		ID:      id,
		Attributes: map[string]string{
			ir.AttrName:     name,
			ir.AttrEndpoint: endpoint,
		},
	}
}

// APIGatewayV2 Integration

type IntegrationConfig struct {
	APIID                string `json:"apiId"`
	IntegrationType      string `json:"integrationType"`
	FunctionArn          string `json:"functionArn"`
	Region               string `json:"region"`
	PayloadFormatVersion string `json:"payloadFormatVersion"`
}

// URI is the Lambda invocation URI the gateway calls.
func (c *IntegrationConfig) URI() string {
	return fmt.Sprintf("arn:aws:apigateway:%s:lambda:path/2015-03-31/functions/%s/invocations", c.Region, c.FunctionArn)
}

// IntegrationDriver manages the Lambda proxy integration, matched by type
// and invocation URI.
type IntegrationDriver struct {
	client GatewayAPI
}

func NewIntegrationDriver(client GatewayAPI) *IntegrationDriver {
	return &IntegrationDriver{client: client}
}

func (d *IntegrationDriver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[IntegrationConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}

	uri := desired.URI()
	input := &apigatewayv2.GetIntegrationsInput{ApiId: aws.String(desired.APIID)}
	for {
		resp, err := d.client.GetIntegrations(ctx, input)
		if err != nil {
			return ir.Observation{}, fmt.Errorf("failed to list integrations: %w", err)
		}
		for _, item := range resp.Items {
			if string(item.IntegrationType) == desired.IntegrationType && aws.ToString(item.IntegrationUri) == uri {
				return integrationObservation(aws.ToString(item.IntegrationId), uri), nil
			}
		}
		if resp.NextToken == nil {
			return ir.Absent(), nil
		}
		input.NextToken = resp.NextToken
	}
}

func (d *IntegrationDriver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[IntegrationConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}

	uri := desired.URI()
	resp, err := d.client.CreateIntegration(ctx, &apigatewayv2.CreateIntegrationInput{
		ApiId:                aws.String(desired.APIID),
		IntegrationType:      types.IntegrationType(desired.IntegrationType),
		IntegrationUri:       aws.String(uri),
		PayloadFormatVersion: aws.String(desired.PayloadFormatVersion),
	})
	if err != nil {
		return ir.Observation{}, fmt.Errorf("failed to create integration: %w", err)
	}
	return integrationObservation(aws.ToString(resp.IntegrationId), uri), nil
}

func (d *IntegrationDriver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	obs, err := d.Probe(ctx, req)
	if err != nil {
		return ir.Observation{}, err
	}
	if !obs.Present {
		return ir.Observation{}, notFound("integration %s not found", req.Name)
	}
	return obs, nil
}

// Update re-asserts the payload format on the matched integration.
func (d *IntegrationDriver) Update(ctx context.Context, req *provider.Request, existing ir.Observation) (ir.Observation, error) {
	desired, err := decode[IntegrationConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	if _, err := d.client.UpdateIntegration(ctx, &apigatewayv2.UpdateIntegrationInput{
		ApiId:                aws.String(desired.APIID),
		IntegrationId:        aws.String(existing.ID),
		IntegrationUri:       aws.String(desired.URI()),
		PayloadFormatVersion: aws.String(desired.PayloadFormatVersion),
	}); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to update integration: %w", err)
	}
	return existing, nil
}

func integrationObservation(id, uri string) ir.Observation {
	return ir.Observation{
		Present:    true,
		ID:         id,
		Attributes: map[string]string{"uri": uri},
	}
}

// APIGatewayV2 Route

type RouteConfig struct {
	APIID         string `json:"apiId"`
	RouteKey      string `json:"routeKey"`
	IntegrationID string `json:"integrationId"`
}

// RouteDriver manages one route, matched by route key.
type RouteDriver struct {
	client GatewayAPI
}

func NewRouteDriver(client GatewayAPI) *RouteDriver {
	return &RouteDriver{client: client}
}

func (d *RouteDriver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[RouteConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}

	input := &apigatewayv2.GetRoutesInput{ApiId: aws.String(desired.APIID)}
	for {
		resp, err := d.client.GetRoutes(ctx, input)
		if err != nil {
			return ir.Observation{}, fmt.Errorf("failed to list routes: %w", err)
		}
		for _, item := range resp.Items {
			if aws.ToString(item.RouteKey) == desired.RouteKey {
				return routeObservation(aws.ToString(item.RouteId), desired.RouteKey, aws.ToString(item.Target)), nil
			}
		}
		if resp.NextToken == nil {
			return ir.Absent(), nil
		}
		input.NextToken = resp.NextToken
	}
}

func (d *RouteDriver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[RouteConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}

	target := "integrations/" + desired.IntegrationID
	resp, err := d.client.CreateRoute(ctx, &apigatewayv2.CreateRouteInput{
		ApiId:    aws.String(desired.APIID),
		RouteKey: aws.String(desired.RouteKey),
		Target:   aws.String(target),
	})
	if err != nil {
		return ir.Observation{}, fmt.Errorf("failed to create route %q: %w", desired.RouteKey, err)
	}
	return routeObservation(aws.ToString(resp.RouteId), desired.RouteKey, target), nil
}

func (d *RouteDriver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	obs, err := d.Probe(ctx, req)
	if err != nil {
		return ir.Observation{}, err
	}
	if !obs.Present {
		return ir.Observation{}, notFound("route %s not found", req.Name)
	}
	return obs, nil
}

func routeObservation(id, key, target string) ir.Observation {
	return ir.Observation{
		Present: true,
		ID:      id,
		Attributes: map[string]string{
			"route-key": key,
			"target":    target,
		},
	}
}

// APIGatewayV2 Stage

type StageConfig struct {
	APIID      string `json:"apiId"`
	Endpoint   string `json:"endpoint"`
	StageName  string `json:"stageName"`
	AutoDeploy bool   `json:"autoDeploy"`
}

// URL is the public invoke URL of the stage. The $default stage is served
// at the API root.
func (c *StageConfig) URL() string {
	base := strings.TrimSuffix(c.Endpoint, "/")
	if c.StageName == "$default" {
		return base + "/"
	}
	return base + "/" + c.StageName
}

// StageDriver manages the deployment stage. Its url attribute is the
// topology's public endpoint.
type StageDriver struct {
	client GatewayAPI
}

func NewStageDriver(client GatewayAPI) *StageDriver {
	return &StageDriver{client: client}
}

func (d *StageDriver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[StageConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	resp, err := d.client.GetStage(ctx, &apigatewayv2.GetStageInput{
		ApiId:     aws.String(desired.APIID),
		StageName: aws.String(desired.StageName),
	})
	if err != nil {
		return ir.Observation{}, fmt.Errorf("failed to get stage: %w", err)
	}
	return stageObservation(aws.ToString(resp.StageName), desired.URL()), nil
}

func (d *StageDriver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	desired, err := decode[StageConfig](req)
	if err != nil {
		return ir.Observation{}, err
	}
	resp, err := d.client.CreateStage(ctx, &apigatewayv2.CreateStageInput{
		ApiId:      aws.String(desired.APIID),
		StageName:  aws.String(desired.StageName),
		AutoDeploy: aws.Bool(desired.AutoDeploy),
	})
	if err != nil {
		return ir.Observation{}, fmt.Errorf("failed to create stage: %w", err)
	}
	return stageObservation(aws.ToString(resp.StageName), desired.URL()), nil
}

func (d *StageDriver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	return d.Probe(ctx, req)
}

func stageObservation(name, url string) ir.Observation {
	return ir.Observation{
		Present: true,
		ID:      name,
		Attributes: map[string]string{
			ir.AttrName: name,
			ir.AttrURL:  url,
		},
	}
}
