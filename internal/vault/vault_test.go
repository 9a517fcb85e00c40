package vault

import (
	"context"
	"errors"
	"testing"
)

func TestParseRef(t *testing.T) {
	p, key, err := ParseRef("vault:secret/hmi#journal")
	if err != nil || p != "secret/hmi" || key != "journal" {
		t.Fatalf("ParseRef = %q, %q, %v", p, key, err)
	}

	for _, bad := range []string{"secret/hmi#journal", "vault:secret/hmi", "vault:secret#k", "vault:#k", "vault:secret/hmi#"} {
		if _, _, err := ParseRef(bad); !errors.Is(err, ErrBadRef) {
			t.Errorf("ParseRef(%q) err = %v, want ErrBadRef", bad, err)
		}
	}
}

func TestSplitMount(t *testing.T) {
	m, r := splitMount("secret/hmi/journal")
	if m != "secret" || r != "hmi/journal" {
		t.Fatalf("splitMount = %q, %q", m, r)
	}
}

func TestResolve_LiteralPassesThrough(t *testing.T) {
	// A zero Client never reaches Vault for literals.
	var c Client
	got, err := c.Resolve(context.Background(), "plain-password")
	if err != nil || got != "plain-password" {
		t.Fatalf("Resolve = %q, %v", got, err)
	}
}
