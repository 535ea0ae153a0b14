package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelFetcherRequiresBucketAndKey(t *testing.T) {
	tests := []struct {
		name string
		cfg  FetcherConfig
	}{
		{name: "missing bucket", cfg: FetcherConfig{Key: "model.onnx"}},
		{name: "missing key", cfg: FetcherConfig{Bucket: "models"}},
		{name: "missing both", cfg: FetcherConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModelFetcher(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewModelFetcherWithEndpoint(t *testing.T) {
	f, err := NewModelFetcher(FetcherConfig{
		Bucket:    "models",
		Key:       "voiceshield.onnx",
		Endpoint:  "localhost:9000",
		Region:    "us-east-1",
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	assert.NotNil(t, f)
}
