package config

import "fmt"

// VectorProvider identifies a vector store implementation.
type VectorProvider string

const (
	// VectorProviderChromem is the embedded default; zero external
	// dependencies.
	VectorProviderChromem VectorProvider = "chromem"

	// VectorProviderQdrant talks to a Qdrant server over gRPC.
	VectorProviderQdrant VectorProvider = "qdrant"

	// VectorProviderPinecone talks to a Pinecone serverless index.
	VectorProviderPinecone VectorProvider = "pinecone"
)

// VectorProviderConfig configures one vector store.
type VectorProviderConfig struct {
	// Provider selects the implementation.
	// Default: chromem
	Provider VectorProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,enum=chromem,enum=qdrant,enum=pinecone,default=chromem"`

	// Chromem configuration (used when Provider == "chromem").
	Chromem *ChromemConfig `yaml:"chromem,omitempty" json:"chromem,omitempty"`

	// Qdrant configuration (used when Provider == "qdrant").
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty" json:"qdrant,omitempty"`

	// Pinecone configuration (used when Provider == "pinecone").
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty" json:"pinecone,omitempty"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	// PersistPath enables file persistence. Empty keeps vectors in memory.
	// Default: .argus/vectors
	PersistPath string `yaml:"persist_path,omitempty" json:"persist_path,omitempty" jsonschema:"title=Persist Path"`

	// Compress enables gzip compression for persisted vectors.
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty" jsonschema:"title=Compress"`
}

// QdrantConfig configures a Qdrant connection.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host" json:"host" jsonschema:"title=Host"`

	// Port is the Qdrant gRPC port.
	// Default: 6334
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,default=6334"`

	// APIKey for authenticated access (optional).
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`

	// UseTLS enables TLS connections.
	UseTLS bool `yaml:"use_tls,omitempty" json:"use_tls,omitempty" jsonschema:"title=Use TLS"`
}

// PineconeConfig configures a Pinecone connection.
type PineconeConfig struct {
	// APIKey is required for Pinecone authentication.
	APIKey string `yaml:"api_key" json:"api_key" jsonschema:"title=API Key"`

	// IndexName is the index to use.
	IndexName string `yaml:"index_name" json:"index_name" jsonschema:"title=Index Name"`

	// Host overrides the control-plane endpoint (optional).
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host"`
}

// SetDefaults applies default values to VectorProviderConfig.
func (c *VectorProviderConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = VectorProviderChromem
	}
	if c.Provider == VectorProviderChromem {
		if c.Chromem == nil {
			c.Chromem = &ChromemConfig{}
		}
	}
	if c.Provider == VectorProviderQdrant && c.Qdrant != nil && c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
}

// Validate checks the vector store configuration.
func (c *VectorProviderConfig) Validate() error {
	switch c.Provider {
	case "", VectorProviderChromem:
		return nil
	case VectorProviderQdrant:
		if c.Qdrant == nil || c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant host is required")
		}
		return nil
	case VectorProviderPinecone:
		if c.Pinecone == nil || c.Pinecone.APIKey == "" {
			return fmt.Errorf("pinecone api_key is required")
		}
		if c.Pinecone.IndexName == "" {
			return fmt.Errorf("pinecone index_name is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown vector provider %q (valid: chromem, qdrant, pinecone)", c.Provider)
	}
}
