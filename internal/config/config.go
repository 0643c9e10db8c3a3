// Package config loads the bridge configuration: ingest listener, topic
// subscriptions with their rate policies, packer selection, and the
// transport endpoint with its credential material. Configuration problems
// are the one fatal error class in the system, so validation here is strict.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/signalsfoundry/tdl-bridge/internal/jword"
)

// Transport modes.
const (
	ModeSecure = "secure"
	ModeSim    = "sim"
)

// Config is the parsed, validated bridge configuration.
type Config struct {
	Ingest    IngestConfig
	Transport TransportConfig
	Allow     []string
	Deny      []string
	Topics    []TopicConfig
	SpareBit  uint8
	// DeliverTimeout bounds one sink delivery.
	DeliverTimeout time.Duration
}

// IngestConfig selects the report source.
type IngestConfig struct {
	UDPListen string
}

// TransportConfig selects and parameterizes the sink.
type TransportConfig struct {
	Mode        string
	Endpoint    string
	CAFile      string
	CertFile    string
	KeyFile     string
	ServerName  string
	PSK         []byte
	DialTimeout time.Duration
	MaxTries    int
}

// TopicConfig declares one subscription.
type TopicConfig struct {
	Name       string
	Packer     string
	Header     jword.HeaderContext
	RatePerSec float64
	Burst      float64
}

// internal JSON shapes - kept unexported so the wire format can evolve
// independently of the parsed form.
type configJSON struct {
	Ingest    ingestJSON    `json:"ingest"`
	Transport transportJSON `json:"transport"`
	Allow     []string      `json:"allow"`
	Deny      []string      `json:"deny"`
	Topics    []topicJSON   `json:"topics"`
	SpareBit  *uint8        `json:"spare_bit"`
	DeliverMS int64         `json:"deliver_timeout_ms"`
}

type ingestJSON struct {
	UDPListen string `json:"udp_listen"`
}

type transportJSON struct {
	Mode        string `json:"mode"`
	Endpoint    string `json:"endpoint"`
	CAFile      string `json:"ca_file"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	ServerName  string `json:"server_name"`
	PSKHex      string `json:"psk_hex"`
	DialMS      int64  `json:"dial_timeout_ms"`
	MaxTries    int    `json:"max_tries"`
}

type topicJSON struct {
	Name       string  `json:"name"`
	Packer     string  `json:"packer"`
	Header     uint16  `json:"header_context"`
	RatePerSec float64 `json:"rate_per_sec"`
	Burst      float64 `json:"burst"`
}

// Load decodes and validates a JSON configuration from r.
func Load(r io.Reader) (*Config, error) {
	var payload configJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("config: decode failed: %w", err)
	}

	cfg := &Config{
		Ingest: IngestConfig{UDPListen: payload.Ingest.UDPListen},
		Transport: TransportConfig{
			Mode:        payload.Transport.Mode,
			Endpoint:    payload.Transport.Endpoint,
			CAFile:      payload.Transport.CAFile,
			CertFile:    payload.Transport.CertFile,
			KeyFile:     payload.Transport.KeyFile,
			ServerName:  payload.Transport.ServerName,
			DialTimeout: time.Duration(payload.Transport.DialMS) * time.Millisecond,
			MaxTries:    payload.Transport.MaxTries,
		},
		Allow:          payload.Allow,
		Deny:           payload.Deny,
		DeliverTimeout: time.Duration(payload.DeliverMS) * time.Millisecond,
	}
	if payload.SpareBit != nil {
		if *payload.SpareBit > 1 {
			return nil, fmt.Errorf("config: spare_bit %d is not a single bit", *payload.SpareBit)
		}
		cfg.SpareBit = *payload.SpareBit
	}

	switch cfg.Transport.Mode {
	case ModeSecure, ModeSim:
	case "":
		cfg.Transport.Mode = ModeSim
	default:
		return nil, fmt.Errorf("config: unknown transport mode %q", cfg.Transport.Mode)
	}
	if cfg.Transport.Mode == ModeSecure && cfg.Transport.Endpoint == "" {
		return nil, fmt.Errorf("config: secure transport requires an endpoint")
	}

	if payload.Transport.PSKHex != "" {
		psk, err := hex.DecodeString(payload.Transport.PSKHex)
		if err != nil {
			return nil, fmt.Errorf("config: psk_hex: %w", err)
		}
		cfg.Transport.PSK = psk
	}

	if len(payload.Topics) == 0 {
		return nil, fmt.Errorf("config: no topics configured")
	}
	seen := make(map[string]bool, len(payload.Topics))
	for _, t := range payload.Topics {
		if t.Name == "" {
			return nil, fmt.Errorf("config: topic with empty name")
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("config: duplicate topic %q", t.Name)
		}
		seen[t.Name] = true

		hdr := jword.HeaderContext(t.Header)
		if !hdr.Valid() {
			return nil, fmt.Errorf("config: topic %q: header_context %d exceeds %d bits", t.Name, t.Header, jword.HeaderBits)
		}
		packer := t.Packer
		if packer == "" {
			packer = "sim"
		}
		cfg.Topics = append(cfg.Topics, TopicConfig{
			Name:       t.Name,
			Packer:     packer,
			Header:     hdr,
			RatePerSec: t.RatePerSec,
			Burst:      t.Burst,
		})
	}

	return cfg, nil
}

// LoadFile loads a configuration from a file path.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// TLSConfig builds the mutual-TLS client configuration from the configured
// credential material. Any failure here is fatal for the secure transport:
// the pipeline must not start on bad credentials.
func (t TransportConfig) TLSConfig() (*tls.Config, error) {
	if t.CertFile == "" || t.KeyFile == "" {
		return nil, fmt.Errorf("config: secure transport requires cert_file and key_file")
	}
	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("config: load client keypair: %w", err)
	}

	tc := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		ServerName:   t.ServerName,
	}
	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("config: read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("config: no certificates in %q", t.CAFile)
		}
		tc.RootCAs = pool
	}
	return tc, nil
}
