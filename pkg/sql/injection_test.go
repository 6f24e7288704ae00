package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFieldForInjection_CleanText(t *testing.T) {
	clean := []string{
		"total revenue by region",
		"How many orders are still pending?",
		"customers who placed an order in the last 30 days",
	}
	for _, value := range clean {
		assert.Nil(t, CheckFieldForInjection("prompt", value), value)
	}
}

func TestCheckFieldForInjection_DetectsInjection(t *testing.T) {
	result := CheckFieldForInjection("prompt", "' OR 1=1 --")

	require.NotNil(t, result)
	assert.True(t, result.IsSQLi)
	assert.NotEmpty(t, result.Fingerprint)
	assert.Equal(t, "prompt", result.FieldName)
	assert.Equal(t, "' OR 1=1 --", result.FieldValue)
}

func TestCheckFieldForInjection_EmptyValue(t *testing.T) {
	assert.Nil(t, CheckFieldForInjection("prompt", ""))
}

func TestCheckFields(t *testing.T) {
	results := CheckFields(map[string]string{
		"prompt":      "top products by sales",
		"description": "'; DROP TABLE users--",
	})

	require.Len(t, results, 1)
	assert.Equal(t, "description", results[0].FieldName)
}
