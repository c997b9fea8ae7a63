package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithEmbeddingHost("http://embed.internal:9100/v1"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithDimensions(1536),
	)

	assert.Equal(t, "http://embed.internal:9100/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.Dimensions)
}

func TestConfig_Normalize_AddsV1Suffix(t *testing.T) {
	cfg := NewConfig(WithEmbeddingHost("http://localhost:11434"))
	cfg.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)

	cfg = NewConfig(WithEmbeddingHost("http://localhost:11434/"))
	cfg.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)

	cfg = NewConfig(WithEmbeddingHost("http://localhost:11434/v1"))
	cfg.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := NewConfig(WithEmbeddingModel(""))
	assert.Error(t, cfg.Validate())

	cfg = NewConfig(WithDimensions(0))
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.EmbeddingHost = ""
	assert.Error(t, cfg.Validate())
}
