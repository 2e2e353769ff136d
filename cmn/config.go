package cmn

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/partimesh/parti/cmn/atomic"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds the process-wide knobs of spec §6 plus the transport and
// buffer-pool tuning spec §9 asks for. It is loaded once at process
// start and swapped atomically so readers never see a torn config.
type Config struct {
	// Size is LAIK_SIZE: the master-side initial world size.
	Size int `json:"size"`

	// TCPHost/TCPPort are LAIK_TCP2_HOST/LAIK_TCP2_PORT.
	TCPHost string `json:"tcp_host"`
	TCPPort int    `json:"tcp_port"`

	// DebugRank holds LAIK_DEBUG_RANK. It is only stored: no code in
	// this module reads it, and no rank busy-loops at startup.
	DebugRank int `json:"debug_rank"`

	// DropSmallMessages is the LAIK_MPI_BUG test hook: silently drop
	// messages smaller than DropSmallMessagesUnder elements.
	DropSmallMessages      bool `json:"drop_small_messages"`
	DropSmallMessagesUnder int  `json:"drop_small_messages_under"`

	// Compression enables the optional lz4-compressed `dataz` frame
	// variant on the Dynamic transport (§4.10 of SPEC_FULL.md).
	Compression          bool `json:"compression"`
	CompressionThreshold int  `json:"compression_threshold"`

	// PackBufSize bounds a single pack/unpack scratch chunk.
	PackBufSize int `json:"pack_buf_size"`

	// BootstrapConcurrency bounds how many peers are dialed concurrently
	// during the register/id handshake (§4.10).
	BootstrapConcurrency int `json:"bootstrap_concurrency"`
}

// DefaultConfig mirrors the defaults documented in spec §6.
func DefaultConfig() *Config {
	return &Config{
		Size:                 1,
		TCPHost:              "localhost",
		TCPPort:              7777,
		DebugRank:            -1,
		PackBufSize:          1 << 20, // 1MB chunk per pack/unpack round
		CompressionThreshold: 4096,
		BootstrapConcurrency: 8,
	}
}

// LoadConfig decodes JSON bytes into a Config seeded with defaults.
func LoadConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, NewErrConfig("decode config", err)
	}
	return c, nil
}

// gco ("global config owner") mirrors the teacher's atomic-pointer
// config-snapshot pattern (wxl2github-aistore/cmn/config.go).
type gco struct {
	c atomic.Pointer[Config]
}

// GCO is the process-wide config owner; Get never blocks a concurrent Put.
var GCO = &gco{}

func (g *gco) Get() *Config {
	c := g.c.Load()
	if c == nil {
		c = DefaultConfig()
		g.c.Store(c)
	}
	return c
}

func (g *gco) Put(c *Config) { g.c.Store(c) }
