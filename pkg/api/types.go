package api

import "time"

const (
	// ReservedPrefix marks .env entries that are never published.
	ReservedPrefix = "___"

	DefaultEnvFile        = ".env"
	DefaultStepName       = "CREATE_DOT_ENV_FILE"
	DefaultAPIURL         = "https://api.github.com"
	DefaultRequestTimeout = 30 * time.Second

	EnvRepository   = "___GITHUB_REPOSITORY___"
	EnvToken        = "___GITHUB_TOKEN___"
	EnvWorkflowPath = "___GITHUB_ACTION_WORKFLOW_PATH___"
)

// EnvVariable is a variable name and the value it holds in the process environment.
type EnvVariable struct {
	Name  string
	Value string
}

// PublicKey is a repository's secret-encryption key as returned by the API.
type PublicKey struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"` // base64 X25519 public key
}

// SealedSecret is the request body of a secret upsert.
type SealedSecret struct {
	EncryptedValue string `json:"encrypted_value"`
	KeyID          string `json:"key_id"`
}

// Settings is the configuration bundle passed to every component.
type Settings struct {
	Repository     string
	Token          string
	WorkflowPath   string
	FragmentOutput string
	EnvFile        string
	StepName       string
	LineTemplate   string
	Skip           []string
	APIURL         string
	RequestTimeout time.Duration
	DryRun         bool
}
