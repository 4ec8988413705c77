package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	apitypes "github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	logtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const testAccount = "123456789012"

// fakeAWS is an in-memory account implementing every narrow client
// interface. calls records each API operation in order.
type fakeAWS struct {
	calls []string

	buckets       map[string]string // name -> location constraint
	roles         map[string]string // name -> trust policy
	rolePolicies  map[string]string // role/policy -> document
	functions     map[string]*lambda.CreateFunctionInput
	codeUpdates   int
	configUpdates int
	statements    map[string]map[string]string // function -> sid -> source arn
	logGroups     map[string]int32
	apis          []apitypes.Api
	integrations  map[string][]apitypes.Integration
	routes        map[string][]apitypes.Route
	stages        map[string]bool // apiId/stage
	nextID        int

	// pageSize splits list responses to exercise pagination.
	pageSize int
}

func newFakeAWS() *fakeAWS {
	return &fakeAWS{
		buckets:      make(map[string]string),
		roles:        make(map[string]string),
		rolePolicies: make(map[string]string),
		functions:    make(map[string]*lambda.CreateFunctionInput),
		statements:   make(map[string]map[string]string),
		logGroups:    make(map[string]int32),
		integrations: make(map[string][]apitypes.Integration),
		routes:       make(map[string][]apitypes.Route),
		stages:       make(map[string]bool),
		pageSize:     1,
	}
}

func (f *fakeAWS) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%04d", prefix, f.nextID)
}

func (f *fakeAWS) record(op string) {
	f.calls = append(f.calls, op)
}

func (f *fakeAWS) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func apiErr(code, msg string) error {
	return &smithy.GenericAPIError{Code: code, Message: msg}
}

// page returns items[start:start+pageSize] and the next token.
func page[T any](items []T, token *string, size int) ([]T, *string) {
	start := 0
	if token != nil {
		fmt.Sscanf(*token, "%d", &start)
	}
	if size <= 0 || start+size >= len(items) {
		if start > len(items) {
			start = len(items)
		}
		return items[start:], nil
	}
	return items[start : start+size], aws.String(fmt.Sprintf("%d", start+size))
}

// S3

func (f *fakeAWS) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.record("HeadBucket")
	if _, ok := f.buckets[aws.ToString(in.Bucket)]; !ok {
		return nil, apiErr("NotFound", "Not Found")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeAWS) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.record("CreateBucket")
	name := aws.ToString(in.Bucket)
	if _, ok := f.buckets[name]; ok {
		return nil, apiErr("BucketAlreadyOwnedByYou", "Your previous request to create the named bucket succeeded")
	}
	loc := ""
	if in.CreateBucketConfiguration != nil {
		loc = string(in.CreateBucketConfiguration.LocationConstraint)
	}
	f.buckets[name] = loc
	return &s3.CreateBucketOutput{Location: aws.String("/" + name)}, nil
}

// IAM

func (f *fakeAWS) roleARN(name string) string {
	return "arn:aws:iam::" + testAccount + ":role/" + name
}

func (f *fakeAWS) GetRole(ctx context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.record("GetRole")
	name := aws.ToString(in.RoleName)
	if _, ok := f.roles[name]; !ok {
		return nil, apiErr("NoSuchEntity", "The role with name "+name+" cannot be found.")
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{RoleName: aws.String(name), Arn: aws.String(f.roleARN(name))}}, nil
}

func (f *fakeAWS) CreateRole(ctx context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.record("CreateRole")
	name := aws.ToString(in.RoleName)
	if _, ok := f.roles[name]; ok {
		return nil, apiErr("EntityAlreadyExists", "Role with name "+name+" already exists.")
	}
	f.roles[name] = aws.ToString(in.AssumeRolePolicyDocument)
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{RoleName: aws.String(name), Arn: aws.String(f.roleARN(name))}}, nil
}

func (f *fakeAWS) PutRolePolicy(ctx context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.record("PutRolePolicy")
	f.rolePolicies[aws.ToString(in.RoleName)+"/"+aws.ToString(in.PolicyName)] = aws.ToString(in.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *fakeAWS) UpdateAssumeRolePolicy(ctx context.Context, in *iam.UpdateAssumeRolePolicyInput, _ ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error) {
	f.record("UpdateAssumeRolePolicy")
	f.roles[aws.ToString(in.RoleName)] = aws.ToString(in.PolicyDocument)
	return &iam.UpdateAssumeRolePolicyOutput{}, nil
}

// Lambda

func (f *fakeAWS) functionARN(name string) string {
	return "arn:aws:lambda:us-east-1:" + testAccount + ":function:" + name
}

func (f *fakeAWS) CreateFunction(ctx context.Context, in *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	f.record("CreateFunction")
	name := aws.ToString(in.FunctionName)
	if _, ok := f.functions[name]; ok {
		return nil, apiErr("ResourceConflictException", "Function already exist: "+name)
	}
	f.functions[name] = in
	return &lambda.CreateFunctionOutput{FunctionName: aws.String(name), FunctionArn: aws.String(f.functionARN(name))}, nil
}

func (f *fakeAWS) GetFunction(ctx context.Context, in *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	f.record("GetFunction")
	name := aws.ToString(in.FunctionName)
	if _, ok := f.functions[name]; !ok {
		return nil, apiErr("ResourceNotFoundException", "Function not found: "+name)
	}
	return &lambda.GetFunctionOutput{Configuration: &lambdatypes.FunctionConfiguration{
		FunctionName:     aws.String(name),
		FunctionArn:      aws.String(f.functionARN(name)),
		State:            lambdatypes.StateActive,
		LastUpdateStatus: lambdatypes.LastUpdateStatusSuccessful,
	}}, nil
}

func (f *fakeAWS) UpdateFunctionCode(ctx context.Context, in *lambda.UpdateFunctionCodeInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error) {
	f.record("UpdateFunctionCode")
	fn, ok := f.functions[aws.ToString(in.FunctionName)]
	if !ok {
		return nil, apiErr("ResourceNotFoundException", "Function not found")
	}
	fn.Code = &lambdatypes.FunctionCode{ZipFile: in.ZipFile}
	f.codeUpdates++
	return &lambda.UpdateFunctionCodeOutput{}, nil
}

func (f *fakeAWS) UpdateFunctionConfiguration(ctx context.Context, in *lambda.UpdateFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error) {
	f.record("UpdateFunctionConfiguration")
	fn, ok := f.functions[aws.ToString(in.FunctionName)]
	if !ok {
		return nil, apiErr("ResourceNotFoundException", "Function not found")
	}
	fn.MemorySize = in.MemorySize
	fn.Timeout = in.Timeout
	fn.Environment = in.Environment
	f.configUpdates++
	return &lambda.UpdateFunctionConfigurationOutput{}, nil
}

func (f *fakeAWS) AddPermission(ctx context.Context, in *lambda.AddPermissionInput, _ ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error) {
	f.record("AddPermission")
	name := aws.ToString(in.FunctionName)
	sid := aws.ToString(in.StatementId)
	if f.statements[name] == nil {
		f.statements[name] = make(map[string]string)
	}
	if _, ok := f.statements[name][sid]; ok {
		return nil, apiErr("ResourceConflictException", "The statement id ("+sid+") provided already exists.")
	}
	f.statements[name][sid] = aws.ToString(in.SourceArn)
	return &lambda.AddPermissionOutput{Statement: aws.String(`{"Sid":"` + sid + `"}`)}, nil
}

func (f *fakeAWS) RemovePermission(ctx context.Context, in *lambda.RemovePermissionInput, _ ...func(*lambda.Options)) (*lambda.RemovePermissionOutput, error) {
	f.record("RemovePermission")
	name := aws.ToString(in.FunctionName)
	sid := aws.ToString(in.StatementId)
	if _, ok := f.statements[name][sid]; !ok {
		return nil, apiErr("ResourceNotFoundException", "No policy is associated with the given resource.")
	}
	delete(f.statements[name], sid)
	return &lambda.RemovePermissionOutput{}, nil
}

func (f *fakeAWS) GetPolicy(ctx context.Context, in *lambda.GetPolicyInput, _ ...func(*lambda.Options)) (*lambda.GetPolicyOutput, error) {
	f.record("GetPolicy")
	name := aws.ToString(in.FunctionName)
	stmts := f.statements[name]
	if len(stmts) == 0 {
		return nil, apiErr("ResourceNotFoundException", "The resource you requested does not exist.")
	}
	type statement struct {
		Sid       string `json:"Sid"`
		Condition struct {
			ArnLike map[string]string `json:"ArnLike"`
		} `json:"Condition"`
	}
	var doc struct {
		Version   string      `json:"Version"`
		Statement []statement `json:"Statement"`
	}
	doc.Version = "2012-10-17"
	for sid, src := range stmts {
		st := statement{Sid: sid}
		st.Condition.ArnLike = map[string]string{"AWS:SourceArn": src}
		doc.Statement = append(doc.Statement, st)
	}
	raw, _ := json.Marshal(doc)
	return &lambda.GetPolicyOutput{Policy: aws.String(string(raw))}, nil
}

// CloudWatch Logs

func (f *fakeAWS) DescribeLogGroups(ctx context.Context, in *cloudwatchlogs.DescribeLogGroupsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	f.record("DescribeLogGroups")
	var groups []logtypes.LogGroup
	for _, name := range sortedKeys(f.logGroups) {
		if strings.HasPrefix(name, aws.ToString(in.LogGroupNamePrefix)) {
			groups = append(groups, logtypes.LogGroup{
				LogGroupName:    aws.String(name),
				Arn:             aws.String("arn:aws:logs:us-east-1:" + testAccount + ":log-group:" + name + ":*"),
				RetentionInDays: aws.Int32(f.logGroups[name]),
			})
		}
	}
	items, next := page(groups, in.NextToken, f.pageSize)
	return &cloudwatchlogs.DescribeLogGroupsOutput{LogGroups: items, NextToken: next}, nil
}

func (f *fakeAWS) CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.record("CreateLogGroup")
	name := aws.ToString(in.LogGroupName)
	if _, ok := f.logGroups[name]; ok {
		return nil, apiErr("ResourceAlreadyExistsException", "The specified log group already exists")
	}
	f.logGroups[name] = 0
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeAWS) PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	f.record("PutRetentionPolicy")
	f.logGroups[aws.ToString(in.LogGroupName)] = aws.ToInt32(in.RetentionInDays)
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

// API Gateway v2

func (f *fakeAWS) GetApis(ctx context.Context, in *apigatewayv2.GetApisInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.GetApisOutput, error) {
	f.record("GetApis")
	items, next := page(f.apis, in.NextToken, f.pageSize)
	return &apigatewayv2.GetApisOutput{Items: items, NextToken: next}, nil
}

func (f *fakeAWS) CreateApi(ctx context.Context, in *apigatewayv2.CreateApiInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateApiOutput, error) {
	f.record("CreateApi")
	id := f.id("api")
	endpoint := "https://" + id + ".execute-api.us-east-1.amazonaws.com"
	f.apis = append(f.apis, apitypes.Api{ApiId: aws.String(id), Name: in.Name, ApiEndpoint: aws.String(endpoint), CorsConfiguration: in.CorsConfiguration})
	return &apigatewayv2.CreateApiOutput{ApiId: aws.String(id), Name: in.Name, ApiEndpoint: aws.String(endpoint)}, nil
}

func (f *fakeAWS) GetIntegrations(ctx context.Context, in *apigatewayv2.GetIntegrationsInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.GetIntegrationsOutput, error) {
	f.record("GetIntegrations")
	items, next := page(f.integrations[aws.ToString(in.ApiId)], in.NextToken, f.pageSize)
	return &apigatewayv2.GetIntegrationsOutput{Items: items, NextToken: next}, nil
}

func (f *fakeAWS) CreateIntegration(ctx context.Context, in *apigatewayv2.CreateIntegrationInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateIntegrationOutput, error) {
	f.record("CreateIntegration")
	id := f.id("int")
	apiID := aws.ToString(in.ApiId)
	f.integrations[apiID] = append(f.integrations[apiID], apitypes.Integration{
		IntegrationId:        aws.String(id),
		IntegrationType:      in.IntegrationType,
		IntegrationUri:       in.IntegrationUri,
		PayloadFormatVersion: in.PayloadFormatVersion,
	})
	return &apigatewayv2.CreateIntegrationOutput{IntegrationId: aws.String(id)}, nil
}

func (f *fakeAWS) UpdateIntegration(ctx context.Context, in *apigatewayv2.UpdateIntegrationInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.UpdateIntegrationOutput, error) {
	f.record("UpdateIntegration")
	return &apigatewayv2.UpdateIntegrationOutput{IntegrationId: in.IntegrationId}, nil
}

func (f *fakeAWS) GetRoutes(ctx context.Context, in *apigatewayv2.GetRoutesInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.GetRoutesOutput, error) {
	f.record("GetRoutes")
	items, next := page(f.routes[aws.ToString(in.ApiId)], in.NextToken, f.pageSize)
	return &apigatewayv2.GetRoutesOutput{Items: items, NextToken: next}, nil
}

func (f *fakeAWS) CreateRoute(ctx context.Context, in *apigatewayv2.CreateRouteInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateRouteOutput, error) {
	f.record("CreateRoute")
	apiID := aws.ToString(in.ApiId)
	for _, r := range f.routes[apiID] {
		if aws.ToString(r.RouteKey) == aws.ToString(in.RouteKey) {
			return nil, apiErr("ConflictException", "Unable to complete operation due to concurrent modification or route already exists")
		}
	}
	id := f.id("rt")
	f.routes[apiID] = append(f.routes[apiID], apitypes.Route{RouteId: aws.String(id), RouteKey: in.RouteKey, Target: in.Target})
	return &apigatewayv2.CreateRouteOutput{RouteId: aws.String(id), RouteKey: in.RouteKey, Target: in.Target}, nil
}

func (f *fakeAWS) GetStage(ctx context.Context, in *apigatewayv2.GetStageInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.GetStageOutput, error) {
	f.record("GetStage")
	if !f.stages[aws.ToString(in.ApiId)+"/"+aws.ToString(in.StageName)] {
		return nil, apiErr("NotFoundException", "Invalid stage identifier specified")
	}
	return &apigatewayv2.GetStageOutput{StageName: in.StageName}, nil
}

func (f *fakeAWS) CreateStage(ctx context.Context, in *apigatewayv2.CreateStageInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateStageOutput, error) {
	f.record("CreateStage")
	key := aws.ToString(in.ApiId) + "/" + aws.ToString(in.StageName)
	if f.stages[key] {
		return nil, apiErr("ConflictException", "Stage already exists")
	}
	f.stages[key] = true
	return &apigatewayv2.CreateStageOutput{StageName: in.StageName, AutoDeploy: in.AutoDeploy}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
