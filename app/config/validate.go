package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func settingsSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	})
	return schema, schemaErr
}

// ValidateSettings checks the merged viper settings before they are unmarshalled.
// Each violation names the setting key and the environment variable that overrides it.
func ValidateSettings(settings map[string]any) error {
	s, err := settingsSchema()
	if err != nil {
		return fmt.Errorf("cleanrate: load settings schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(settings))
	if err != nil {
		return fmt.Errorf("cleanrate: validate settings: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		problems = append(problems, describe(re))
	}
	sort.Strings(problems)
	return fmt.Errorf("cleanrate: invalid settings: %s", strings.Join(problems, "; "))
}

func describe(re gojsonschema.ResultError) string {
	key := re.Field()
	if key == "" || key == "(root)" {
		return re.Description()
	}
	return fmt.Sprintf("%s (%s): %s", key, envName(key), re.Description())
}

// envName maps a dotted setting key to its CLEANRATE_ override.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
