package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/picklr-io/ocrstack/internal/ir"
)

// Config is the explicit configuration handed to the orchestrator and the
// extraction service. Nothing reads credentials or region from globals; the
// AWS SDK default credential chain is consulted with Region/Profile from here.
type Config struct {
	// AWS
	Region  string
	Profile string

	// Topology
	BucketName       string
	RoleName         string
	PolicyName       string
	FunctionName     string
	Runtime          string
	Handler          string
	CodePath         string
	MemorySize       int32
	FunctionTimeout  int32 // seconds
	LogRetentionDays int32
	APIName          string
	StageName        string
	Routes           []string
	StatementID      string
	RoleSettle       time.Duration
	OperationTimeout time.Duration

	// Publishing
	EnvFile      string
	EnvKey       string
	SSMParameter string

	// Extraction
	Engine              string
	TesseractPath       string
	TesseractLangs      string
	ConfidenceThreshold float64 // negative means engine default
	OutputDir           string
	OutputBucket        string
	ListenAddr          string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment. Unset variables fall back
// to the names used by the production deployment.
func Load() (*Config, error) {
	cfg := &Config{
		Region:  getEnv("AWS_REGION", getEnv("AWS_DEFAULT_REGION", "us-east-1")),
		Profile: getEnv("AWS_PROFILE", ""),

		BucketName:   getEnv("OCR_BUCKET_NAME", "ocr-escaner-word"),
		RoleName:     getEnv("OCR_ROLE_NAME", "ocr-lambda-role"),
		PolicyName:   getEnv("OCR_POLICY_NAME", "OCRLambdaPolicy"),
		FunctionName: getEnv("OCR_FUNCTION_NAME", "ocr-textract-processor"),
		Runtime:      getEnv("OCR_FUNCTION_RUNTIME", "provided.al2023"),
		Handler:      getEnv("OCR_FUNCTION_HANDLER", "bootstrap"),
		CodePath:     getEnv("OCR_FUNCTION_CODE", "dist/bootstrap"),
		APIName:      getEnv("OCR_API_NAME", "ocr-api"),
		StageName:    getEnv("OCR_STAGE_NAME", "prod"),
		Routes:       getEnvList("OCR_ROUTES", []string{"POST /", "OPTIONS /"}),
		StatementID:  getEnv("OCR_STATEMENT_ID", "api-gateway-invoke"),

		EnvFile:      getEnv("OCR_ENV_FILE", "../.env"),
		EnvKey:       getEnv("OCR_ENV_KEY", "EXPO_PUBLIC_AWS_API_URL"),
		SSMParameter: getEnv("OCR_SSM_PARAMETER", ""),

		Engine:         getEnv("OCR_ENGINE", "tesseract"),
		TesseractPath:  getEnv("OCR_TESSERACT_PATH", "tesseract"),
		TesseractLangs: getEnv("OCR_TESSERACT_LANGS", "spa+eng"),
		OutputDir:      getEnv("OCR_OUTPUT_DIR", "output"),
		OutputBucket:   getEnv("OCR_OUTPUT_BUCKET", getEnv("BUCKET_NAME", "")),
		ListenAddr:     getEnv("OCR_LISTEN_ADDR", ":8000"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	var err error
	if cfg.MemorySize, err = getEnvInt32("OCR_FUNCTION_MEMORY", 512); err != nil {
		return nil, err
	}
	if cfg.FunctionTimeout, err = getEnvInt32("OCR_FUNCTION_TIMEOUT", 60); err != nil {
		return nil, err
	}
	if cfg.LogRetentionDays, err = getEnvInt32("OCR_LOG_RETENTION_DAYS", 14); err != nil {
		return nil, err
	}
	if cfg.RoleSettle, err = getEnvDuration("OCR_ROLE_SETTLE", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.OperationTimeout, err = getEnvDuration("OCR_OPERATION_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ConfidenceThreshold, err = getEnvFloat("OCR_CONFIDENCE_THRESHOLD", -1); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateProvision checks the settings the orchestrator depends on.
func (c *Config) ValidateProvision() error {
	required := []struct{ field, value string }{
		{"region", c.Region},
		{"bucket name", c.BucketName},
		{"role name", c.RoleName},
		{"policy name", c.PolicyName},
		{"function name", c.FunctionName},
		{"function code", c.CodePath},
		{"api name", c.APIName},
		{"stage name", c.StageName},
		{"statement id", c.StatementID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.field)
		}
	}
	if len(c.Routes) == 0 {
		return fmt.Errorf("at least one route is required")
	}
	if c.RoleSettle < 0 {
		return fmt.Errorf("role settle wait must not be negative")
	}
	return nil
}

// ValidateExtraction checks the settings the extraction service depends on.
func (c *Config) ValidateExtraction() error {
	switch c.Engine {
	case "tesseract", "textract", "vision":
	default:
		return fmt.Errorf("unknown OCR engine %q (want tesseract, textract or vision)", c.Engine)
	}
	if c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1")
	}
	return nil
}

// ApplyOverrides merges a pkl-evaluated overrides module into the config.
func (c *Config) ApplyOverrides(o *ir.Overrides) {
	if o == nil {
		return
	}
	setString(&c.Region, o.Region)
	setString(&c.BucketName, o.BucketName)
	setString(&c.RoleName, o.RoleName)
	setString(&c.FunctionName, o.FunctionName)
	setString(&c.Runtime, o.Runtime)
	setString(&c.Handler, o.Handler)
	setString(&c.APIName, o.APIName)
	setString(&c.StageName, o.StageName)
	if o.MemorySize > 0 {
		c.MemorySize = int32(o.MemorySize)
	}
	if o.TimeoutSeconds > 0 {
		c.FunctionTimeout = int32(o.TimeoutSeconds)
	}
	if o.LogRetention > 0 {
		c.LogRetentionDays = int32(o.LogRetention)
	}
	if len(o.Routes) > 0 {
		c.Routes = append([]string(nil), o.Routes...)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt32(key string, defaultValue int32) (int32, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return int32(v), nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
