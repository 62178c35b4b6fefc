package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP and MCP surfaces.
type ServerConfig struct {
	// Host to bind to.
	// Default: 0.0.0.0
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=0.0.0.0"`

	// Port to listen on.
	// Default: 8080
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,default=8080"`

	// MaxConcurrentRuns bounds parallel goal runs; each run owns one
	// browser.
	// Default: 2
	MaxConcurrentRuns int `yaml:"max_concurrent_runs,omitempty" json:"max_concurrent_runs,omitempty" jsonschema:"title=Max Concurrent Runs,minimum=1,default=2"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty" jsonschema:"title=Shutdown Timeout"`

	// CORS configures cross-origin access.
	CORS *CORSConfig `yaml:"cors,omitempty" json:"cors,omitempty"`

	// Auth configures JWT authentication.
	Auth *AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`

	// MCP configures the Model Context Protocol surface.
	MCP MCPConfig `yaml:"mcp,omitempty" json:"mcp,omitempty"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	// AllowedOrigins lists allowed origins; ["*"] allows all.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty" jsonschema:"title=Allowed Origins"`

	// AllowedMethods lists allowed HTTP methods.
	AllowedMethods []string `yaml:"allowed_methods,omitempty" json:"allowed_methods,omitempty" jsonschema:"title=Allowed Methods"`

	// AllowedHeaders lists allowed request headers.
	AllowedHeaders []string `yaml:"allowed_headers,omitempty" json:"allowed_headers,omitempty" jsonschema:"title=Allowed Headers"`
}

// MCPTransport identifies the MCP transport.
type MCPTransport string

const (
	MCPTransportStdio MCPTransport = "stdio"
	MCPTransportHTTP  MCPTransport = "http"
)

// MCPConfig configures the MCP server surface.
type MCPConfig struct {
	// Enabled turns on the MCP server.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// Transport selects stdio or streamable HTTP.
	// Default: stdio
	Transport MCPTransport `yaml:"transport,omitempty" json:"transport,omitempty" jsonschema:"title=Transport,enum=stdio,enum=http,default=stdio"`

	// Port for the HTTP transport.
	// Default: 8081
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,default=8081"`
}

// SetDefaults applies default values to ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.MaxConcurrentRuns == 0 {
		c.MaxConcurrentRuns = 2
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.CORS != nil {
		if len(c.CORS.AllowedMethods) == 0 {
			c.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		}
		if len(c.CORS.AllowedHeaders) == 0 {
			c.CORS.AllowedHeaders = []string{"Content-Type", "Authorization"}
		}
	}
	if c.Auth != nil {
		c.Auth.SetDefaults()
	}
	c.MCP.SetDefaults()
}

// SetDefaults applies default values to MCPConfig.
func (c *MCPConfig) SetDefaults() {
	if c.Transport == "" {
		c.Transport = MCPTransportStdio
	}
	if c.Port == 0 {
		c.Port = 8081
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in [0, 65535]")
	}
	if c.MaxConcurrentRuns < 0 {
		return fmt.Errorf("max_concurrent_runs must be non-negative")
	}
	if c.Auth != nil {
		if err := c.Auth.Validate(); err != nil {
			return fmt.Errorf("auth config validation failed: %w", err)
		}
	}
	switch c.MCP.Transport {
	case "", MCPTransportStdio, MCPTransportHTTP:
	default:
		return fmt.Errorf("invalid mcp transport %q (valid: stdio, http)", c.MCP.Transport)
	}
	return nil
}

// Address returns the host:port bind address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
