package config

import (
	"testing"
	"time"

	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("OCR_ROUTES", "")
	t.Setenv("OCR_ROLE_SETTLE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "ocr-escaner-word", cfg.BucketName)
	assert.Equal(t, "ocr-lambda-role", cfg.RoleName)
	assert.Equal(t, []string{"POST /", "OPTIONS /"}, cfg.Routes)
	assert.Equal(t, 10*time.Second, cfg.RoleSettle)
	assert.Equal(t, int32(60), cfg.FunctionTimeout)
	assert.Equal(t, "EXPO_PUBLIC_AWS_API_URL", cfg.EnvKey)
	assert.Less(t, cfg.ConfidenceThreshold, 0.0)
	require.NoError(t, cfg.ValidateProvision())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("OCR_ROUTES", "ANY /, ANY /{proxy+} ,")
	t.Setenv("OCR_ROLE_SETTLE", "3s")
	t.Setenv("OCR_FUNCTION_MEMORY", "1024")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, []string{"ANY /", "ANY /{proxy+}"}, cfg.Routes)
	assert.Equal(t, 3*time.Second, cfg.RoleSettle)
	assert.Equal(t, int32(1024), cfg.MemorySize)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("OCR_FUNCTION_TIMEOUT", "sixty")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OCR_FUNCTION_TIMEOUT")
}

func TestValidateProvision(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.FunctionName = " "
	err = cfg.ValidateProvision()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function name")

	cfg.FunctionName = "fn"
	cfg.Routes = nil
	assert.Error(t, cfg.ValidateProvision())
}

func TestValidateExtraction(t *testing.T) {
	cfg := &Config{Engine: "textract", ConfidenceThreshold: -1}
	assert.NoError(t, cfg.ValidateExtraction())

	cfg.Engine = "easyocr"
	assert.Error(t, cfg.ValidateExtraction())

	cfg.Engine = "vision"
	cfg.ConfidenceThreshold = 1.5
	assert.Error(t, cfg.ValidateExtraction())
}

func TestApplyOverrides(t *testing.T) {
	cfg := &Config{BucketName: "a", StageName: "prod", MemorySize: 512, Routes: []string{"POST /"}}

	cfg.ApplyOverrides(&ir.Overrides{
		BucketName: "b",
		MemorySize: 2048,
		Routes:     []string{"ANY /"},
	})

	assert.Equal(t, "b", cfg.BucketName)
	assert.Equal(t, "prod", cfg.StageName)
	assert.Equal(t, int32(2048), cfg.MemorySize)
	assert.Equal(t, []string{"ANY /"}, cfg.Routes)

	cfg.ApplyOverrides(nil)
	assert.Equal(t, "b", cfg.BucketName)
}
