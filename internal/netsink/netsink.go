// Package netsink adapts emberlog's Sink contract (internal/sink) to
// three network transports: Kafka, MQTT, and RELP (spec.md §4.3
// expansion, "network sinks"). Each adapter is a thin wrapper around its
// client library's public send call; framing, retries, and connection
// management are left entirely to that library. Wire payloads are built
// from the Record itself (the bytes rendered by the upstream Formatter
// are not sent) and encoded as JSON (default) or as MessagePack when
// Encoding is set to EncodingMsgpack; the MQTT sink may carry a JWT
// bearer token on connect when Auth is configured.
package netsink

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vmihailenco/msgpack/v5"

	"emberlog/internal/record"
)

// Encoding selects the wire representation a network sink sends. Both
// encodings marshal the same wireRecord built from the Record; the
// upstream Formatter's rendered bytes are ignored either way.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingMsgpack
)

// wireRecord is the structured shape network sinks send, independent of
// the human-oriented Formatter used by console/file sinks. Network
// consumers (a Kafka topic, an MQTT subscriber, a RELP collector) want
// fields, not a pre-colored terminal line.
type wireRecord struct {
	Level     string         `json:"level" msgpack:"level"`
	Timestamp time.Time      `json:"timestamp" msgpack:"timestamp"`
	Message   string         `json:"message" msgpack:"message"`
	Source    string         `json:"source,omitempty" msgpack:"source,omitempty"`
	Fields    map[string]any `json:"fields,omitempty" msgpack:"fields,omitempty"`
}

func toWireRecord(r record.Record) wireRecord {
	wr := wireRecord{
		Level:     r.Level.String(),
		Timestamp: r.Timestamp,
		Message:   r.Message,
	}
	if r.HasSource() {
		wr.Source = fmt.Sprintf("%s:%d", r.Source.File, r.Source.Line)
	}
	if ctx := r.Context(); ctx != nil {
		if flat := ctx.Flatten(); len(flat) > 0 {
			fields := make(map[string]any, len(flat))
			for k, v := range flat {
				fields[k] = v.Any()
			}
			wr.Fields = fields
		}
	}
	return wr
}

func encode(enc Encoding, r record.Record) ([]byte, error) {
	wr := toWireRecord(r)
	switch enc {
	case EncodingMsgpack:
		b, err := msgpack.Marshal(wr)
		if err != nil {
			return nil, fmt.Errorf("netsink: msgpack encode: %w", err)
		}
		return b, nil
	default:
		b, err := json.Marshal(wr)
		if err != nil {
			return nil, fmt.Errorf("netsink: json encode: %w", err)
		}
		return b, nil
	}
}

// AuthConfig signs a JWT bearer token presented at connect time. Claims
// beyond the registered ones are caller-defined and opaque to netsink.
type AuthConfig struct {
	SigningKey []byte
	Method     jwt.SigningMethod // defaults to jwt.SigningMethodHS256
	Issuer     string
	Subject    string
	TTL        time.Duration // token lifetime; re-signed when Token is called again
}

// Token mints a fresh bearer token under cfg. A zero AuthConfig (nil
// SigningKey) means "no auth configured"; callers should skip presenting
// a token entirely rather than call Token.
func (cfg AuthConfig) Token(now time.Time) (string, error) {
	method := cfg.Method
	if method == nil {
		method = jwt.SigningMethodHS256
	}
	claims := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   cfg.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
	}
	tok := jwt.NewWithClaims(method, claims)
	signed, err := tok.SignedString(cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("netsink: sign bearer token: %w", err)
	}
	return signed, nil
}

// enabledFlag is the shared atomic Enabled/SetEnabled pair all three
// adapters embed, matching how internal/sink's Console and File sinks
// expose it.
type enabledFlag struct {
	v atomic.Bool
}

func newEnabledFlag() enabledFlag {
	f := enabledFlag{}
	f.v.Store(true)
	return f
}

func (f *enabledFlag) Enabled() bool     { return f.v.Load() }
func (f *enabledFlag) SetEnabled(v bool) { f.v.Store(v) }

// levelRange is the shared MinLevel/MaxLevel Accepts logic, matching
// internal/sink's Console and File sinks.
type levelRange struct {
	min record.Level
	max record.Level
}

func (lr levelRange) Accepts(level record.Level) bool {
	if level < lr.min {
		return false
	}
	if lr.max != 0 && level > lr.max {
		return false
	}
	return true
}
