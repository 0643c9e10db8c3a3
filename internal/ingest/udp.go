package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/signalsfoundry/tdl-bridge/internal/logging"
	"github.com/signalsfoundry/tdl-bridge/model"
)

// maxDatagram bounds one ingress datagram; a report is a few hundred bytes
// of JSON at most.
const maxDatagram = 8192

// UDPSource listens for JSON track-report datagrams, one report per
// datagram. Datagrams that fail to parse are dropped with a warn log;
// ingress is not trusted to be clean.
type UDPSource struct {
	addr string
	log  logging.Logger

	mu    sync.Mutex
	laddr net.Addr
}

// NewUDPSource constructs a source listening on addr (e.g. ":7430").
func NewUDPSource(addr string, log logging.Logger) *UDPSource {
	if log == nil {
		log = logging.Noop()
	}
	return &UDPSource{addr: addr, log: log}
}

// Addr returns the bound local address, or nil before Reports has been
// called. Useful when listening on port 0.
func (s *UDPSource) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.laddr
}

// Reports implements Source. The socket is closed when ctx ends.
func (s *UDPSource) Reports(ctx context.Context) (<-chan model.TrackReport, error) {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("ingest: listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.laddr = conn.LocalAddr()
	s.mu.Unlock()

	ch := make(chan model.TrackReport, 64)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(ch)
		buf := make([]byte, maxDatagram)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn(ctx, "ingest socket closed", logging.Err(err))
				}
				return
			}
			var rep model.TrackReport
			if err := json.Unmarshal(buf[:n], &rep); err != nil {
				s.log.Warn(ctx, "dropping unparseable report", logging.Err(err))
				continue
			}
			select {
			case ch <- rep:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.log.Info(ctx, "ingest listening", logging.String("addr", s.addr))
	return ch, nil
}
