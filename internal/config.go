package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Site   SiteConfig        `yaml:"site"`
	Blog   BlogConfig        `yaml:"blog"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Live   LiveConfig        `yaml:"live"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Blog.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Live.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SiteConfig locates the site on disk. PagesDir and Output are relative
// to Root.
type SiteConfig struct {
	Root     string `yaml:"root"`
	PagesDir string `yaml:"pages_dir"`
	Output   string `yaml:"output"`
}

// Validate validates the site configuration. Absolute PagesDir and Output
// are rewritten relative to Root; either one leaving Root is an error.
func (c *SiteConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.PagesDir, validation.Required),
		validation.Field(&c.Output, validation.Required),
	); err != nil {
		return err
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("site: resolve root: %w", err)
	}
	if c.PagesDir, err = insideRoot(root, "pages_dir", c.PagesDir); err != nil {
		return err
	}
	c.Output, err = insideRoot(root, "output", c.Output)
	return err
}

func insideRoot(root, name, p string) (string, error) {
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("site: %s %q must be inside site.root %q", name, p, root)
	}
	if !filepath.IsAbs(p) {
		return p, nil
	}
	return rel, nil
}

// BlogConfig tunes index generation.
type BlogConfig struct {
	ExcerptLength int `yaml:"excerpt_length"`
	Workers       int `yaml:"workers"`
}

// Validate validates the blog configuration.
func (c *BlogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ExcerptLength, validation.Required, validation.Min(1)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(256)),
	)
}

// SQLiteConfig holds the catalog database configuration. An empty Path
// disables the catalog.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return nil
}

// Enabled reports whether the catalog should be opened.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

// LiveConfig controls live reload during serve and watch.
type LiveConfig struct {
	RebuildThrottle time.Duration `yaml:"rebuild_throttle"`
}

// Validate validates the live configuration.
func (c *LiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RebuildThrottle, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

// AuthConfig guards the /api routes of the preview server.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// APIToken returns the token the API must require, or "" when disabled.
func (c *AuthConfig) APIToken() string {
	if !c.AuthEnabled() {
		return ""
	}
	return c.Token
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 4000,
			},
		},
		Site: SiteConfig{
			Root:     ".",
			PagesDir: "pages",
			Output:   "posts.json",
		},
		Blog: BlogConfig{
			ExcerptLength: 300,
			Workers:       4,
		},
		SQLite: SQLiteConfig{
			Path: "./quill.db",
		},
		Live: LiveConfig{
			RebuildThrottle: 2 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
