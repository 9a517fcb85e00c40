// internal/vault/vault.go
//
// Vault secret resolution.
//
// Context
// -------
//   - Configuration may carry secret references instead of literals, in the
//     form `vault:<mount>/<path>#<key>` (e.g. the journal DB password).
//   - Client wraps the HashiCorp Vault SDK, reads KV-v2 secrets, caches
//     values per reference, and keeps its token alive in the background.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log)                  // during boot.
//  2. pw,  err := cli.Resolve(ctx, cfg.Journal.Password) // literal or ref.
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – initial token.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// RefPrefix marks a configuration value as a Vault reference.
const RefPrefix = "vault:"

// CacheTTL is how long a resolved secret is reused.
const CacheTTL = 10 * time.Minute

// ErrBadRef is returned for references without a path or key.
var ErrBadRef = errors.New("vault: reference must look like vault:<mount>/<path>#<key>")

// IsRef reports whether s is a Vault reference.
func IsRef(s string) bool { return strings.HasPrefix(s, RefPrefix) }

// ParseRef splits "vault:secret/hmi#journal" into ("secret/hmi", "journal").
func ParseRef(s string) (secretPath, key string, err error) {
	if !IsRef(s) {
		return "", "", ErrBadRef
	}
	body := strings.TrimPrefix(s, RefPrefix)
	secretPath, key, ok := strings.Cut(body, "#")
	if !ok || secretPath == "" || key == "" || !strings.Contains(secretPath, "/") {
		return "", "", ErrBadRef
	}
	return secretPath, key, nil
}

//
// Client
//

// Client is safe for concurrent use.  Create once at startup.
type Client struct {
	api *vault.Client
	log *zap.SugaredLogger

	cacheMu sync.RWMutex
	cache   map[string]cached // reference → value + expiry
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a client from the environment and starts token renewal,
// which stops when ctx is cancelled.
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = zap.S()
	}
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}
	api, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}

	c := &Client{api: api, log: log, cache: make(map[string]cached)}
	go c.renewLoop(ctx)
	return c, nil
}

// Resolve returns s unchanged unless it is a Vault reference, in which case
// the referenced KV-v2 value is returned.
func (c *Client) Resolve(ctx context.Context, s string) (string, error) {
	if !IsRef(s) {
		return s, nil
	}
	p, key, err := ParseRef(s)
	if err != nil {
		return "", err
	}

	c.cacheMu.RLock()
	if cv, ok := c.cache[s]; ok && time.Now().Before(cv.exp) {
		c.cacheMu.RUnlock()
		return cv.val, nil
	}
	c.cacheMu.RUnlock()

	mount, rel := splitMount(p)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", p, err)
	}
	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("vault: key %q not found in %q", key, p)
	}
	val, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("vault: value at %s#%s is not a string", p, key)
	}

	c.cacheMu.Lock()
	c.cache[s] = cached{val: val, exp: time.Now().Add(CacheTTL)}
	c.cacheMu.Unlock()
	return val, nil
}

//
// Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for {
		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			c.log.Warnw("vault token renew failed", "err", err)
			if !backoff(ctx, 30*time.Second) {
				return
			}
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			c.log.Infow("vault token not renewable; sleeping")
			if !backoff(ctx, time.Hour) {
				return
			}
			continue
		}

		w, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{Secret: sec})
		if err != nil {
			c.log.Warnw("vault watcher init failed", "err", err)
			if !backoff(ctx, 30*time.Second) {
				return
			}
			continue
		}
		go w.Start()

		if !c.watch(ctx, w) {
			return
		}
	}
}

// watch follows one watcher until it ends.  It reports false when ctx is
// done.
func (c *Client) watch(ctx context.Context, w *vault.LifetimeWatcher) bool {
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warnw("vault token renewal stopped", "err", err)
			}
			return backoff(ctx, 15*time.Second)
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debugw("vault token renewed", "ttl", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

//
// Helpers
//

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

// backoff sleeps for d and reports false if ctx ended first.
func backoff(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
