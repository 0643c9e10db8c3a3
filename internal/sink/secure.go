package sink

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/signalsfoundry/tdl-bridge/internal/e2ee"
	"github.com/signalsfoundry/tdl-bridge/internal/jword"
	"github.com/signalsfoundry/tdl-bridge/internal/logging"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultMaxTries    = 4

	// maxRecordLen bounds one on-wire record; well above a sealed frame
	// plus the longest permitted topic.
	maxRecordLen = 4096
)

// SecureConfig describes the gateway session. TLSConfig must carry the
// client certificate and CA pool for mutual authentication; building it from
// credential material is the config layer's job and failures there are
// fatal at startup, not here.
type SecureConfig struct {
	Endpoint    string
	TLSConfig   *tls.Config
	PSK         []byte // when set, seals with a PSK-derived key instead of TLS keying material
	DialTimeout time.Duration
	MaxTries    int
}

// SecureSink maintains one long-lived mutually authenticated session to a
// gateway and writes sealed frames as they arrive. Transient failures tear
// the session down and redial under exponential backoff, bounded per
// delivery; an exhausted delivery surfaces as a TransportError and the
// frame is gone.
type SecureSink struct {
	cfg SecureConfig
	log logging.Logger

	// mu serializes all session state: the sink is shared by every topic
	// pipeline, so connect, seal, write, and teardown must not interleave.
	// A frame is written with a single Write call so it is never half-sent.
	mu        sync.Mutex
	conn      *tls.Conn
	sess      *e2ee.Session
	sessionID string
}

// NewSecureSink validates cfg and returns an unconnected sink; the session
// is established on first delivery.
func NewSecureSink(cfg SecureConfig, log logging.Logger) (*SecureSink, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("secure sink: endpoint is empty")
	}
	if cfg.TLSConfig == nil {
		return nil, errors.New("secure sink: TLS config is nil")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = defaultMaxTries
	}
	if log == nil {
		log = logging.Noop()
	}
	return &SecureSink{cfg: cfg, log: log}, nil
}

// Deliver implements Sink. Concurrent callers are serialized per attempt on
// the session lock; each delivery gets its own bounded retry budget.
func (s *SecureSink) Deliver(ctx context.Context, topic string, f *jword.Frame) error {
	data, err := f.MarshalBinary()
	if err != nil {
		// Assembly bug, not a transport condition; retrying cannot help.
		return fmt.Errorf("secure sink: %w", err)
	}

	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		if err := s.writeRecord(ctx, topic, data); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	if _, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(s.cfg.MaxTries)),
	); err != nil {
		return &TransportError{Topic: topic, Attempts: attempts, Err: err}
	}
	return nil
}

// Close tears the session down.
func (s *SecureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.sess = nil
	return err
}

// writeRecord performs one delivery attempt under the session lock, so
// concurrent topic pipelines never interleave session setup or writes.
func (s *SecureSink) writeRecord(ctx context.Context, topic string, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return err
	}

	sealed, err := s.sess.Seal([]byte(topic), frame)
	if err != nil {
		s.drop()
		return err
	}
	record, err := appendRecord(nil, topic, sealed)
	if err != nil {
		return backoff.Permanent(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	} else {
		_ = s.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := s.conn.Write(record); err != nil {
		s.drop()
		return err
	}
	return nil
}

// connect establishes the session if absent. Callers hold mu. A timeout
// here fails only the delivery attempt that needed it.
func (s *SecureSink) connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.cfg.DialTimeout},
		Config:    s.cfg.TLSConfig,
	}
	raw, err := dialer.DialContext(ctx, "tcp", s.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.Endpoint, err)
	}
	conn := raw.(*tls.Conn)

	var sess *e2ee.Session
	if len(s.cfg.PSK) > 0 {
		sess, err = e2ee.SessionFromPSK(s.cfg.PSK)
	} else {
		sess, err = e2ee.SessionFromTLS(conn.ConnectionState())
	}
	if err != nil {
		_ = conn.Close()
		// Key derivation will not start working on a redial with the
		// same material.
		return backoff.Permanent(err)
	}

	s.conn = conn
	s.sess = sess
	s.sessionID = uuid.NewString()
	s.log.Info(ctx, "gateway session established",
		logging.String("endpoint", s.cfg.Endpoint),
		logging.String("session_id", s.sessionID),
	)
	return nil
}

// drop discards the session after a failure. Callers hold mu.
func (s *SecureSink) drop() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = nil
	s.sess = nil
}

// appendRecord frames one sealed payload for the wire:
// [u16 record length][u8 topic length][topic][sealed]. The length prefix
// covers everything after itself.
func appendRecord(dst []byte, topic string, sealed []byte) ([]byte, error) {
	if len(topic) > 255 {
		return nil, fmt.Errorf("topic %q longer than 255 bytes", topic)
	}
	n := 1 + len(topic) + len(sealed)
	if n > maxRecordLen {
		return nil, fmt.Errorf("record of %d bytes exceeds limit %d", n, maxRecordLen)
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	dst = append(dst, byte(len(topic)))
	dst = append(dst, topic...)
	dst = append(dst, sealed...)
	return dst, nil
}

// ReadRecord consumes one wire record, returning the topic and sealed
// payload. Gateway simulators and tests use it as the receive side of
// appendRecord.
func ReadRecord(r io.Reader) (string, []byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", nil, err
	}
	n := int(binary.BigEndian.Uint16(lenBuf[:]))
	if n < 1 || n > maxRecordLen {
		return "", nil, fmt.Errorf("record length %d out of range", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", nil, err
	}
	topicLen := int(body[0])
	if 1+topicLen > n {
		return "", nil, fmt.Errorf("topic length %d overruns record", topicLen)
	}
	topic := string(body[1 : 1+topicLen])
	return topic, body[1+topicLen:], nil
}
