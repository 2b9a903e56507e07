package netsink

import (
	"fmt"
	"net"
	"sync"
	"time"

	gorelp "github.com/thierry-f-78/go-relp"

	"emberlog/internal/record"
	"emberlog/internal/sink"
)

// RELPConfig configures a RELP sink. RELP (Reliable Event Logging
// Protocol) is the TCP transport rsyslog and its peers speak; emberlog
// dials out to a RELP-speaking collector the same way the ingester side
// (internal/ingester/relp, consume-only) accepts connections from one.
type RELPConfig struct {
	Name       string
	Addr       string // collector address, e.g. "collector:2514"
	DialTLS    bool
	DialTLSCfg *gorelp.Options // caller-built TLS options; required when DialTLS is true
	Encoding   Encoding
	MinLevel   record.Level
	MaxLevel   record.Level
}

// RELP frames formatted records to a RELP-speaking collector over a
// long-lived TCP session via github.com/thierry-f-78/go-relp.
type RELP struct {
	name string
	addr string
	enc  Encoding

	mu      sync.Mutex
	conn    net.Conn
	session *gorelp.Session

	levelRange
	enabledFlag
}

// NewRELP dials cfg.Addr and opens a RELP session.
func NewRELP(cfg RELPConfig) (*RELP, error) {
	r := &RELP{
		name:        cfg.Name,
		addr:        cfg.Addr,
		enc:         cfg.Encoding,
		levelRange:  levelRange{min: cfg.MinLevel, max: cfg.MaxLevel},
		enabledFlag: newEnabledFlag(),
	}
	if err := r.dial(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RELP) dial(cfg RELPConfig) error {
	conn, err := net.DialTimeout("tcp", r.addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("netsink: relp dial %s: %w", r.addr, err)
	}

	opts := cfg.DialTLSCfg
	if opts == nil {
		opts, err = gorelp.ValidateOptions(&gorelp.Options{Tls: gorelp.Opt_tls_disabled})
		if err != nil {
			conn.Close()
			return fmt.Errorf("netsink: relp options: %w", err)
		}
	}

	session, err := gorelp.NewTcp(conn, opts)
	if err != nil {
		conn.Close()
		return fmt.Errorf("netsink: relp session %s: %w", r.addr, err)
	}

	r.mu.Lock()
	r.conn = conn
	r.session = session
	r.mu.Unlock()
	return nil
}

func (r *RELP) Write(_ []byte, rec record.Record) error {
	payload, err := encode(r.enc, rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return fmt.Errorf("netsink: relp session to %s is closed", r.addr)
	}
	// SendLog is the client-side counterpart of the ingester's
	// ReceiveLog: it frames payload as a RELP "syslog" command and
	// blocks for the collector's transactional ack.
	return r.session.SendLog(payload)
}

// Flush is a no-op; every Write already waits for a RELP transaction ack.
func (r *RELP) Flush() error { return nil }

func (r *RELP) Name() string { return r.name }

// RotateIfNeeded is a no-op; RELP has no local rotation concept.
func (r *RELP) RotateIfNeeded() (*sink.RotationEvent, error) { return nil, nil }

func (r *RELP) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.session != nil {
		err = r.session.Close()
		r.session = nil
	}
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	return err
}

var _ sink.Sink = (*RELP)(nil)
