// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package config_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savika/savika/internal/config"
	"github.com/savika/savika/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := config.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, config.SchemaID, schema["$id"])
	assert.Contains(t, schema["properties"], "gateway")
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantCode string
	}{
		{"sample", sampleConfig, ""},
		{"empty", "", ""},
		{"unknown key", "gateway:\n  kind: baas\n  colour: blue\n", "CONFIG_SCHEMA_VIOLATION"},
		{"bad enum", "log:\n  format: xml\n", "CONFIG_SCHEMA_VIOLATION"},
		{"bad duration", "gateway:\n  timeout: soon\n", "CONFIG_SCHEMA_VIOLATION"},
		{"not yaml", "gateway: [unclosed\n", "CONFIG_YAML_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.ValidateDocument([]byte(tt.doc))
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}
