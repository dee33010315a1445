package gcsuploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{name: "nested object", uri: "gs://fop-docs/statements/2025/01/mono.pdf", wantBucket: "fop-docs", wantObject: "statements/2025/01/mono.pdf"},
		{name: "missing scheme", uri: "fop-docs/mono.pdf", wantErr: true},
		{name: "bucket only", uri: "gs://fop-docs", wantErr: true},
		{name: "trailing slash only", uri: "gs://fop-docs/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestStatementObjectName(t *testing.T) {
	now := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "statements/2025/04/privat.pdf", StatementObjectName("/tmp/in/privat.pdf", now))
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	assert.Equal(t, "mono.pdf", ExtractFilenameFromGCSURI("gs://bucket/statements/2025/01/mono.pdf"))
	assert.Equal(t, "bucket", ExtractFilenameFromGCSURI("gs://bucket"))
	assert.Equal(t, "gs://bucket/a.pdf", URI("bucket", "a.pdf"))
}
