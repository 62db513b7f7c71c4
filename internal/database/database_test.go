package database

import (
	"strings"
	"testing"
)

func TestSchema_PrivatePairIsUnique(t *testing.T) {
	if !strings.Contains(schema, "CREATE UNIQUE INDEX IF NOT EXISTS ux_conversations_private_pair ON conversations (private_pair)") {
		t.Error("expected a unique index on conversations.private_pair")
	}
}
