// Package config loads editor settings from the environment.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/multierr"

	"github.com/ironsheep/redact-editor/internal/geometry"
	"github.com/ironsheep/redact-editor/internal/overlay"
)

// Prefix is prepended to every environment variable name.
const Prefix = "REDACT_EDITOR_"

// Config holds runtime settings. Fields are filled from REDACT_EDITOR_*
// variables and may be overridden by command-line flags.
type Config struct {
	// ServiceURL is the base URL of the detection and redaction service.
	ServiceURL string
	// UploadURL and ProcessURL default to ServiceURL + "/upload" and "/process".
	UploadURL  string
	ProcessURL string
	Timeout    time.Duration

	OutputDir string

	ViewportWidth  float64
	ViewportHeight float64
	ResizeDebounce time.Duration

	Labels   bool
	Theme    overlay.ThemeConfig
	LogLevel string
}

// Lookup reads one variable; os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		ServiceURL:     "http://localhost:8000",
		Timeout:        60 * time.Second,
		OutputDir:      ".",
		ViewportWidth:  1024,
		ViewportHeight: 768,
		Labels:         true,
		Theme:          overlay.DefaultThemeConfig(),
		LogLevel:       "info",
	}
}

// Load applies every set variable over the defaults. Conversion errors are
// collected; the returned Config always holds usable values.
func Load(lookup Lookup) (*Config, error) {
	c := Default()
	var errs error

	str := func(key string, dst *string) {
		if v, ok := lookup(Prefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(Prefix + key); ok {
			d, err := cast.ToDurationE(strings.TrimSpace(v))
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "%s%s", Prefix, key))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *float64) {
		if v, ok := lookup(Prefix + key); ok {
			f, err := cast.ToFloat64E(strings.TrimSpace(v))
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "%s%s", Prefix, key))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(Prefix + key); ok {
			n, err := cast.ToIntE(strings.TrimSpace(v))
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "%s%s", Prefix, key))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(Prefix + key); ok {
			b, err := cast.ToBoolE(strings.TrimSpace(v))
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "%s%s", Prefix, key))
				return
			}
			*dst = b
		}
	}

	str("SERVICE_URL", &c.ServiceURL)
	str("UPLOAD_URL", &c.UploadURL)
	str("PROCESS_URL", &c.ProcessURL)
	dur("TIMEOUT", &c.Timeout)
	str("OUTPUT_DIR", &c.OutputDir)
	num("VIEWPORT_WIDTH", &c.ViewportWidth)
	num("VIEWPORT_HEIGHT", &c.ViewportHeight)
	dur("RESIZE_DEBOUNCE", &c.ResizeDebounce)
	boolean("LABELS", &c.Labels)
	str("MARKED_FILL", &c.Theme.MarkedFill)
	str("MARKED_BORDER", &c.Theme.MarkedBorder)
	str("EXCLUDED_FILL", &c.Theme.ExcludedFill)
	str("EXCLUDED_BORDER", &c.Theme.ExcludedBorder)
	num("FILL_OPACITY", &c.Theme.FillOpacity)
	integer("BORDER_WIDTH", &c.Theme.BorderWidth)
	str("LOG_LEVEL", &c.LogLevel)

	return c, multierr.Append(errs, c.Validate())
}

// Validate clamps values to safe ranges and derives the endpoint URLs. It
// fails only when no usable service endpoint can be formed.
func (c *Config) Validate() error {
	def := Default()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.ViewportWidth < 0 {
		c.ViewportWidth = 0
	}
	if c.ViewportHeight < 0 {
		c.ViewportHeight = 0
	}
	if c.ResizeDebounce < 0 {
		c.ResizeDebounce = 0
	}
	if c.Theme.FillOpacity < 0 || c.Theme.FillOpacity > 1 {
		c.Theme.FillOpacity = def.Theme.FillOpacity
	}
	if c.Theme.BorderWidth < 0 {
		c.Theme.BorderWidth = def.Theme.BorderWidth
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	base := strings.TrimRight(c.ServiceURL, "/")
	if c.UploadURL == "" && base != "" {
		c.UploadURL = base + "/upload"
	}
	if c.ProcessURL == "" && base != "" {
		c.ProcessURL = base + "/process"
	}

	var errs error
	for name, raw := range map[string]string{"upload": c.UploadURL, "process": c.ProcessURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = multierr.Append(errs, errors.Errorf("invalid %s URL %q", name, raw))
		}
	}
	return errs
}

// Viewport returns the configured viewport size. Zero means unbounded.
func (c *Config) Viewport() geometry.Size {
	return geometry.Size{W: c.ViewportWidth, H: c.ViewportHeight}
}
