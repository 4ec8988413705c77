package topology

import (
	"testing"
	"time"

	"github.com/picklr-io/ocrstack/internal/config"
	"github.com/picklr-io/ocrstack/internal/engine"
	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Region:           "us-east-1",
		BucketName:       "ocr-escaner-word",
		RoleName:         "ocr-lambda-role",
		PolicyName:       "OCRLambdaPolicy",
		FunctionName:     "ocr-textract-processor",
		Runtime:          "provided.al2023",
		Handler:          "bootstrap",
		CodePath:         "dist/bootstrap",
		MemorySize:       512,
		FunctionTimeout:  60,
		LogRetentionDays: 14,
		APIName:          "ocr-api",
		StageName:        "prod",
		Routes:           []string{"POST /", "OPTIONS /"},
		StatementID:      "api-gateway-invoke",
		RoleSettle:       10 * time.Second,
		OperationTimeout: 5 * time.Minute,
	}
}

func find(descs []*ir.Descriptor, name string) *ir.Descriptor {
	for _, d := range descs {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func TestBuild_Order(t *testing.T) {
	descs := Build(testConfig())
	require.NoError(t, Validate(descs))

	dag, err := engine.BuildDAG(engine.ExpandEach(descs))
	require.NoError(t, err)
	assert.Equal(t, []string{
		Bucket, Role, Function, LogGroup, API, Integration,
		"route[POST /]", "route[OPTIONS /]", Stage, Permission,
	}, dag.Order())
	assert.Equal(t, []string{Bucket}, dag.Roots())
	assert.Equal(t, []string{Permission}, dag.Sinks())
}

func TestBuild_WithoutLogGroup(t *testing.T) {
	cfg := testConfig()
	cfg.LogRetentionDays = 0

	descs := Build(cfg)
	require.NoError(t, Validate(descs))
	assert.Nil(t, find(descs, LogGroup))
	assert.Equal(t, []string{Function}, find(descs, API).DependsOn)
}

func TestBuild_RoleSettle(t *testing.T) {
	descs := Build(testConfig())

	assert.Equal(t, 10*time.Second, find(descs, Role).SettleAfter)
	assert.Equal(t, 10*time.Second, SettleTotal(descs))
	for _, d := range descs {
		assert.Equal(t, 5*time.Minute, d.Timeout, d.Name)
	}
}

func TestBuild_References(t *testing.T) {
	descs := Build(testConfig())

	fn := find(descs, Function)
	assert.Equal(t, "ptr://role/arn", fn.Properties["role"])
	assert.Equal(t, map[string]any{
		"BUCKET_NAME": "ptr://bucket/name",
		"OCR_ENGINE":  "textract",
		"LOG_FORMAT":  "json",
	}, fn.Properties["environment"])

	perm := find(descs, Permission)
	assert.Equal(t, "apigateway.amazonaws.com", perm.Properties["principal"])
	assert.Equal(t, "api-gateway-invoke", perm.Properties["statementId"])
	assert.Equal(t, []string{Stage}, perm.DependsOn)

	route := find(descs, Route)
	assert.Equal(t, []string{"POST /", "OPTIONS /"}, route.Each)
}

func TestBuild_CustomRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Routes = []string{"POST /", "OPTIONS /", "GET /download/{filename}"}

	descs := Build(cfg)
	require.NoError(t, Validate(descs))

	dag, err := engine.BuildDAG(engine.ExpandEach(descs))
	require.NoError(t, err)
	assert.Contains(t, dag.Order(), "route[GET /download/{filename}]")
}

func TestValidate_MultipleRoots(t *testing.T) {
	descs := Build(testConfig())
	descs = append(descs, &ir.Descriptor{Name: "orphan", Kind: ir.KindBucket})

	err := Validate(descs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single root")
}

func TestEndpoint(t *testing.T) {
	run := ir.NewRun()
	_, err := Endpoint(run)
	assert.Error(t, err)

	run.Record(&ir.ResolvedResource{Name: Stage, Kind: ir.KindStage, ID: "prod"})
	_, err = Endpoint(run)
	assert.ErrorContains(t, err, "no url")

	run.Record(&ir.ResolvedResource{Name: Stage, Kind: ir.KindStage, ID: "prod", Attributes: map[string]string{
		ir.AttrURL: "https://abc123.execute-api.us-east-1.amazonaws.com/prod",
	}})
	url, err := Endpoint(run)
	require.NoError(t, err)
	assert.Equal(t, "https://abc123.execute-api.us-east-1.amazonaws.com/prod", url)
}
