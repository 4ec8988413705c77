package eval

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator_LoadOverrides(t *testing.T) {
	// pkl-go drives the pkl CLI.
	if _, err := exec.LookPath("pkl"); err != nil {
		t.Skip("pkl CLI not installed")
	}

	content := `
region = "eu-west-1"
bucketName = "ocr-docs-" + read("prop:env")
roleName = ""
functionName = "ocr-processor"
runtime = ""
handler = ""
memorySize = 1024
timeoutSeconds = 0
apiName = ""
stageName = "v1"
routes = List("POST /", "OPTIONS /", "POST /extract-text/")
logRetentionDays = 30
`
	path := filepath.Join(t.TempDir(), "topology.pkl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	o, err := NewEvaluator(map[string]string{"env": "dev"}).LoadOverrides(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", o.Region)
	assert.Equal(t, "ocr-docs-dev", o.BucketName)
	assert.Equal(t, "ocr-processor", o.FunctionName)
	assert.Equal(t, 1024, o.MemorySize)
	assert.Equal(t, "v1", o.StageName)
	assert.Equal(t, []string{"POST /", "OPTIONS /", "POST /extract-text/"}, o.Routes)
	assert.Equal(t, 30, o.LogRetention)
}

func TestEvaluator_MissingFile(t *testing.T) {
	if _, err := exec.LookPath("pkl"); err != nil {
		t.Skip("pkl CLI not installed")
	}
	_, err := NewEvaluator(nil).LoadOverrides(context.Background(), filepath.Join(t.TempDir(), "nope.pkl"))
	assert.Error(t, err)
}
