// internal/config/model.go
//
// Typed configuration model for the HMI runtime.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from its overlay layers:
//
//   • built-in defaults                     – lowest precedence,
//   • optional `.env`                       – dotenv values,
//   • `conf/global.yaml`                    – primary static file,
//   • `HMI_`-prefixed environment overrides – highest precedence.
//
// A `journal.password` that begins with `vault:` is resolved through
// internal/vault by cmd/hmi at startup; the model keeps the reference as-is.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

//
// HTTP section
//

// HTTP holds web-server tunables for the view transport.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// View section
//

// View holds view-engine settings.
type View struct {
	// BridgeName is the context property under which the popup bridge is
	// exposed.
	BridgeName string `koanf:"bridge_name" validate:"required,alphanum"`
	// AllowedOrigins lists websocket origins; empty means same-origin only.
	AllowedOrigins []string `koanf:"allowed_origins" validate:"dive,url"`
}

//
// Journal section
//

// Journal configures the optional prompt journal.  An empty DSN disables
// it.  Password may be a literal or a `vault:<path>#<key>` reference.
type Journal struct {
	DSN      string `koanf:"dsn"`
	Password string `koanf:"password" validate:"required_with=DSN"`
}

// Enabled reports whether a journal DSN is configured.
func (j Journal) Enabled() bool { return j.DSN != "" }

//
// Log section
//

// Log controls the file logger.
type Log struct {
	Dir   string `koanf:"dir"   validate:"required"`
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // HMI_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the aggregate returned by Load().
type Config struct {
	HTTP    HTTP    `koanf:"http"`
	View    View    `koanf:"view"`
	Journal Journal `koanf:"journal"`
	Log     Log     `koanf:"log"`
	Paths   Paths   `koanf:"-"` // not loaded from config files
}
