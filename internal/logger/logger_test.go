package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeHashesContactKeys(t *testing.T) {
	out := sanitizeKVs([]any{"email", "Jane@Acme.com", "company", "Acme", "dangling"})
	assert.Len(t, out, 5)
	assert.Equal(t, "email", out[0])
	hashed, _ := out[1].(string)
	assert.True(t, strings.HasPrefix(hashed, "sha256:"))
	assert.NotContains(t, hashed, "acme")
	assert.Equal(t, "Acme", out[3])
	assert.Equal(t, "dangling", out[4])
}

func TestHashIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, hashValue("jane@acme.com"), hashValue(" JANE@acme.com "))
	assert.Equal(t, "", hashValue(""))
}

func TestNopDoesNotPanic(t *testing.T) {
	l := Nop().With("component", "test")
	l.Info("hello", "email", "x@y.z")
	l.Sync()
}
