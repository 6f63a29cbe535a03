package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "loud"
	cfg.Analysis.CacheSize = -1
	cfg.Output.Format = "yaml"
	cfg.Output.Limit = -3

	err := cfg.Validate()
	var verr *MultiValidationError
	require.ErrorAs(t, err, &verr)

	fields := make([]string, 0, len(verr.Errors))
	for _, e := range verr.Errors {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"log.level", "analysis.cache_size", "output.format", "output.limit"}, fields)
	assert.Contains(t, err.Error(), "validation failed with 4 errors")
}

func TestValidate_SingleError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = "xml"
	assert.EqualError(t, cfg.Validate(), `output.format: must be text, json or csv, got "xml"`)
}

func TestValidate_CaseInsensitive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "DEBUG"
	cfg.Output.Format = "JSON"
	assert.NoError(t, cfg.Validate())
}
