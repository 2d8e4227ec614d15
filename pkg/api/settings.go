package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingRepository = errors.New("repository not set")
	ErrInvalidRepository = errors.New("repository must be in owner/name form")
	ErrMissingToken      = errors.New("token not set")
	ErrMissingOutput     = errors.New("neither workflow path nor fragment output set")
	ErrInvalidPublicKey  = errors.New("malformed public key response")
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadSettings fills the environment-backed fields of s from lookup. Values
// already set on s take precedence.
func LoadSettings(s Settings, lookup LookupFunc) Settings {
	fill := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	fill(&s.Repository, EnvRepository)
	fill(&s.Token, EnvToken)
	fill(&s.WorkflowPath, EnvWorkflowPath)

	if s.EnvFile == "" {
		s.EnvFile = DefaultEnvFile
	}
	if s.StepName == "" {
		s.StepName = DefaultStepName
	}
	if s.APIURL == "" {
		s.APIURL = DefaultAPIURL
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	return s
}

// Validate checks the settings for configuration errors.
func (s Settings) Validate() error {
	if s.WorkflowPath == "" && s.FragmentOutput == "" {
		return fmt.Errorf("%w: set %s or -fragment-output", ErrMissingOutput, EnvWorkflowPath)
	}
	if s.DryRun {
		return nil
	}
	if s.Repository == "" {
		return fmt.Errorf("%w: set %s", ErrMissingRepository, EnvRepository)
	}
	owner, name, ok := strings.Cut(s.Repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidRepository, s.Repository)
	}
	if s.Token == "" {
		return fmt.Errorf("%w: set %s", ErrMissingToken, EnvToken)
	}
	return nil
}

// Validate guards against a key response missing either field.
func (k PublicKey) Validate() error {
	if k.Key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidPublicKey)
	}
	if k.KeyID == "" {
		return fmt.Errorf("%w: key_id is empty", ErrInvalidPublicKey)
	}
	return nil
}
