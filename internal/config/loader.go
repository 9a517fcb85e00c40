// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from four layers (highest
precedence last):

  1. Built-in `Defaults()`, so the binary starts without any file.
  2. Optional `.env` file at `<root>/conf/.env`.
  3. Optional `conf/global.yaml`.
  4. Environment variables prefixed `HMI_`, where `__` maps to “.”
     (e.g., `HMI_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, the tree is unmarshalled over the defaults, validated,
and enriched with the runtime root path.  Callers own the returned value;
the package keeps no global copy.

Instrumentation
---------------
  • DEBUG spans – root discovery, YAML read.
  • ERROR spans – YAML parse, env overlay, unmarshal, validation failures.
  • INFO  span  – final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`;
    this lets `go run ./cmd/hmi` work from any sub-directory.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "HMI_"

/*──────────────────────────── defaults ────────────────────────────────────*/

// Defaults returns the configuration used for any key no layer sets.
func Defaults() Config {
	return Config{
		HTTP: HTTP{ListenAddr: "127.0.0.1:8080"},
		View: View{BridgeName: "popupBridge"},
		Log:  Log{Dir: "logs", Level: "info"},
	}
}

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves HMI_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to the working directory.
func rootDir() string {
	if r := os.Getenv("HMI_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load discovers the root directory and calls LoadFrom.
func Load() (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)
	return LoadFrom(root)
}

// LoadFrom reads .env, YAML, and env overrides under root and validates
// the result.
func LoadFrom(root string) (*Config, error) {
	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
			return nil, err
		}
		zap.S().Debugw("config yaml absent; using defaults", "file", yamlPath)
	} else {
		zap.S().Debugw("config yaml loaded", "file", yamlPath)
	}

	// Env overrides: HMI_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	if !filepath.IsAbs(cfg.Log.Dir) {
		cfg.Log.Dir = filepath.Join(root, cfg.Log.Dir)
	}
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"bridge_name", cfg.View.BridgeName,
		"journal", cfg.Journal.Enabled(),
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}
