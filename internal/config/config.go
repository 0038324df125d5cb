package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/researchstream/internal/model"
)

// Default configuration values.
const (
	// DefaultServerURL is where the research app listens when run locally.
	DefaultServerURL = "http://127.0.0.1:8000"

	// DefaultResearchPath is the path of the streaming research endpoint.
	DefaultResearchPath = "/research"

	// DefaultTimeout bounds a whole research request including the body.
	// Report generation runs several model calls per topic, so it is generous.
	DefaultTimeout = 10 * time.Minute

	// DefaultBatchSize is the number of companies researched concurrently.
	DefaultBatchSize = 4

	// DefaultBufferSize is the largest chunk read from the response body.
	DefaultBufferSize = 32 * 1024

	// DefaultVariant is the rendering variant of the current research page.
	DefaultVariant = model.VariantSentinel

	// AppName is the application name used for XDG directory paths.
	AppName = "researchstream"

	// DefaultUserAgent identifies the client in HTTP requests.
	DefaultUserAgent = "researchstream/1.0 (+https://github.com/nao1215/researchstream)"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all options of a research invocation.
// It is built from CLI flags and the configuration file and passed down
// explicitly rather than kept in global state.
type Config struct {
	// ServerURL is the base URL of the research app.
	ServerURL string

	// ResearchPath is the path of the streaming endpoint on ServerURL.
	ResearchPath string

	// Timeout bounds each research request, body included. Zero disables it.
	Timeout time.Duration

	// BufferSize is the largest chunk read from the body at once.
	BufferSize int

	// Variant selects the decoder and rendering policy.
	Variant model.Variant

	// Criteria are the checkbox IDs to check before activating.
	Criteria []string

	// Companies are the companies to research. Empty means one run with the
	// page's input value.
	Companies []string

	// PagePath is an optional file with research page markup.
	// When empty, a page with the built-in topic vocabulary is used.
	PagePath string

	// CancelPrevious cancels an in-flight run when the control is activated again.
	CancelPrevious bool

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// BatchSize is the number of companies researched concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// Quiet disables live rendering of the report to stdout.
	Quiet bool

	// ConfigFilePath is the configuration file given on the command line.
	ConfigFilePath string

	// ServerConfigs holds the loaded configuration file.
	ServerConfigs *File

	// TextReport, MarkdownReport and JSONReport select the final report
	// format. None set means raw HTML. They are mutually exclusive.
	TextReport     bool
	MarkdownReport bool
	JSONReport     bool

	// Sanitize strips unsafe markup from HTML reports.
	Sanitize bool

	// ReportFile is where the final report is written. Empty means stdout
	// when a format is selected, nowhere otherwise.
	ReportFile string

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB stores every finished run in the history database.
	SaveToDB bool

	// UserAgent is the User-Agent header of research requests.
	UserAgent string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ServerURL:         DefaultServerURL,
		ResearchPath:      DefaultResearchPath,
		Timeout:           DefaultTimeout,
		BufferSize:        DefaultBufferSize,
		Variant:           DefaultVariant,
		BatchSize:         DefaultBatchSize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory of the application.
// On Linux: ~/.local/share/researchstream
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory of the application.
// On Linux: ~/.config/researchstream
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ServerHost returns the host[:port] of ServerURL, or "" if it does not parse.
func (c *Config) ServerHost() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// ServerSettings returns the configuration file settings for ServerURL.
func (c *Config) ServerSettings() ServerConfig {
	if c.ServerConfigs == nil {
		return ServerConfig{}
	}
	return c.ServerConfigs.GetServerConfig(c.ServerHost())
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidServerURL
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.BufferSize < 0 {
		return ErrInvalidBufferSize
	}

	if _, err := model.ParseVariant(string(c.Variant)); err != nil {
		return err
	}

	formats := 0
	for _, set := range []bool{c.TextReport, c.MarkdownReport, c.JSONReport} {
		if set {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingTransports
	}

	return nil
}
