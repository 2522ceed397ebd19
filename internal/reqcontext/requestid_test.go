package reqcontext

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidRequestID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"UUID", "a1b2c3d4-e5f6-7890-abcd-ef1234567890", true},
		{"alphanumeric", "abc123", true},
		{"underscores", "chaos_run_7", true},
		{"single character", "x", true},
		{"max length", strings.Repeat("a", MaxRequestIDLength), true},

		{"empty", "", false},
		{"too long", strings.Repeat("a", MaxRequestIDLength+1), false},
		{"space", "request 123", false},
		{"header injection", "abc\r\nX-Evil: 1", false},
		{"angle brackets", "<script>", false},
		{"dot", "file.txt", false},
		{"unicode", "req-é", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidRequestID(tt.id))
		})
	}
}

func TestNewRequestID(t *testing.T) {
	id := NewRequestID()

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.True(t, IsValidRequestID(id))
	assert.NotEqual(t, id, NewRequestID())
}

func TestResolveRequestID(t *testing.T) {
	assert.Equal(t, "client-supplied-1", ResolveRequestID("client-supplied-1"))

	for _, bad := range []string{"", "has spaces", strings.Repeat("z", 300)} {
		got := ResolveRequestID(bad)
		assert.NotEqual(t, bad, got)
		assert.True(t, IsValidRequestID(got), "generated ID %q should be valid", got)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", GetRequestID(ctx))

	assert.Empty(t, GetRequestID(context.Background()))
	assert.Empty(t, GetRequestID(context.TODO()))
}

func BenchmarkIsValidRequestID(b *testing.B) {
	id := "a1b2c3d4-e5f6-7890-abcd-ef1234567890"
	for i := 0; i < b.N; i++ {
		IsValidRequestID(id)
	}
}
