package ir

// Overrides is the shape of an optional pkl module that adjusts topology
// settings. Empty or zero fields leave the configured value untouched.
type Overrides struct {
	Region         string   `pkl:"region"`
	BucketName     string   `pkl:"bucketName"`
	RoleName       string   `pkl:"roleName"`
	FunctionName   string   `pkl:"functionName"`
	Runtime        string   `pkl:"runtime"`
	Handler        string   `pkl:"handler"`
	MemorySize     int      `pkl:"memorySize"`
	TimeoutSeconds int      `pkl:"timeoutSeconds"`
	APIName        string   `pkl:"apiName"`
	StageName      string   `pkl:"stageName"`
	Routes         []string `pkl:"routes"`
	LogRetention   int      `pkl:"logRetentionDays"`
}
