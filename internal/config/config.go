package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	uberconfig "go.uber.org/config"
)

const (
	// ProjectFileName is the descriptor every function project carries at its root.
	ProjectFileName = "project.yml"

	functionKey = "function"
)

var apiVersionRegex = regexp.MustCompile(`^\d+\.\d+$`)

type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

type FunctionConfig struct {
	Name                 string `yaml:"name"`
	SalesforceAPIVersion string `yaml:"salesforce_api_version"`
}

// Load reads and validates the project descriptor in projectPath. Values may
// reference environment variables using ${VAR} or ${VAR:default}.
func Load(projectPath string) (FunctionConfig, error) {
	var cfg FunctionConfig

	filename := filepath.Join(projectPath, ProjectFileName)
	if _, err := os.Stat(filename); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, &Error{Message: fmt.Sprintf("A %s file was not found at: %s", ProjectFileName, filename)}
		}
		return cfg, &Error{Message: fmt.Sprintf("Couldn't read %s: %v", ProjectFileName, err)}
	}

	provider, err := uberconfig.NewYAMLProviderWithExpand(os.LookupEnv, filename)
	if err != nil {
		return cfg, &Error{Message: fmt.Sprintf("Couldn't parse %s: %v", ProjectFileName, err)}
	}

	value := provider.Get(functionKey)
	if !value.HasValue() {
		return cfg, &Error{Message: fmt.Sprintf("%s is missing required table '%s'", ProjectFileName, functionKey)}
	}
	if err := value.Populate(&cfg); err != nil {
		return cfg, &Error{Message: fmt.Sprintf("%s contains unexpected data in '%s': %v", ProjectFileName, functionKey, err)}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c FunctionConfig) validate() error {
	if c.Name == "" {
		return &Error{Message: fmt.Sprintf("%s is missing required key '%s.name'", ProjectFileName, functionKey)}
	}
	if c.SalesforceAPIVersion == "" {
		return &Error{Message: fmt.Sprintf("%s is missing required key '%s.salesforce_api_version'", ProjectFileName, functionKey)}
	}
	if !apiVersionRegex.MatchString(c.SalesforceAPIVersion) {
		return &Error{Message: fmt.Sprintf(
			"'%s.salesforce_api_version' in %s must be in the form 'X.Y' (for example '56.0'), but was '%s'",
			functionKey, ProjectFileName, c.SalesforceAPIVersion,
		)}
	}
	return nil
}
