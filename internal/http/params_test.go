package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseExcludeBots(t *testing.T) {
	for _, raw := range []string{"", "1", "true", "TRUE", "yes", "on", "garbage"} {
		assert.Truef(t, parseExcludeBots(raw), "%q should exclude bots", raw)
	}
	for _, raw := range []string{"0", "false", "False", "no", "off", " off "} {
		assert.Falsef(t, parseExcludeBots(raw), "%q should include bots", raw)
	}
}
