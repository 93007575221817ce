package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientOptions(t *testing.T) {
	assert.Empty(t, ClientOptions(""))
	assert.Empty(t, ClientOptions("   "))
	assert.Len(t, ClientOptions("/etc/yachay/key.json"), 1)
	assert.Len(t, ClientOptions(`{"type":"service_account"}`), 1)
}
