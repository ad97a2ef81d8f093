package gossip

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// dialTimeout bounds each outbound connect+write so a wedged peer cannot
// stall a worker indefinitely; the protocol tolerates the lost message.
const dialTimeout = 5 * time.Second

// tcpSender dials a fresh TCP connection per frame: one connection per
// message, the frame terminates at end-of-stream.
type tcpSender struct {
	dialer net.Dialer
}

func newTCPSender(timeout time.Duration) *tcpSender {
	return &tcpSender{dialer: net.Dialer{Timeout: timeout}}
}

func (t *tcpSender) send(ctx context.Context, address string, frame []byte) error {
	conn, err := t.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	} else {
		conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("write to %s: %w", address, err)
	}
	return nil
}

// listener accepts connections, reads each frame to end-of-stream, and
// dispatches it by protocol tag to one of three bounded queues.
type listener struct {
	ln      net.Listener
	logger  *slog.Logger
	metrics *Metrics

	samplingCh chan<- PeerSamplingMessage
	headerCh   chan<- HeaderMessage
	contentCh  chan<- ContentMessage

	// limiter bounds the rate of accepted connections so a flood of
	// bogus dials cannot monopolize the accept loop. Nil disables
	// limiting.
	limiter *rate.Limiter

	shuttingDown atomic.Bool
}

func newListener(
	address string,
	samplingCh chan<- PeerSamplingMessage,
	headerCh chan<- HeaderMessage,
	contentCh chan<- ContentMessage,
	limiter *rate.Limiter,
	metrics *Metrics,
	logger *slog.Logger,
) (*listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", address, err)
	}
	return &listener{
		ln:         ln,
		logger:     logger,
		metrics:    metrics,
		samplingCh: samplingCh,
		headerCh:   headerCh,
		contentCh:  contentCh,
		limiter:    limiter,
	}, nil
}

// addr returns the listener's bound address (useful when address was ":0").
func (l *listener) addr() string {
	return l.ln.Addr().String()
}

// run accepts connections until close is called or the listener errors.
// It is meant to be run in its own goroutine.
func (l *listener) run() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.shuttingDown.Load() {
				return
			}
			l.logger.Warn("accept failed", "error", err)
			return
		}
		if l.limiter != nil && !l.limiter.Allow() {
			conn.Close()
			continue
		}
		l.handleConn(conn)
	}
}

func (l *listener) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(dialTimeout))
	frame, err := io.ReadAll(conn)
	if err != nil {
		l.logger.Warn("read failed", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	if len(frame) == 0 {
		return
	}
	if err := l.dispatch(frame); err != nil {
		l.logger.Warn("malformed frame", "remote", conn.RemoteAddr(), "error", err)
	}
}

func (l *listener) dispatch(frame []byte) error {
	tag, body, err := decodeFrame(frame)
	if err != nil {
		return err
	}
	switch tag {
	case tagNoop:
		return nil
	case tagSampling:
		var msg PeerSamplingMessage
		if err := defaultCodec.Decode(body, &msg); err != nil {
			return fmt.Errorf("decode sampling message: %w", err)
		}
		select {
		case l.samplingCh <- msg:
		default:
			l.logger.Warn("sampling channel full, dropping message")
		}
		return nil
	case tagHeader:
		var msg HeaderMessage
		if err := defaultCodec.Decode(body, &msg); err != nil {
			return fmt.Errorf("decode header message: %w", err)
		}
		select {
		case l.headerCh <- msg:
		default:
			l.logger.Warn("header channel full, dropping message")
		}
		return nil
	case tagContent:
		var msg ContentMessage
		if err := defaultCodec.Decode(body, &msg); err != nil {
			return fmt.Errorf("decode content message: %w", err)
		}
		select {
		case l.contentCh <- msg:
		default:
			l.logger.Warn("content channel full, dropping message")
		}
		return nil
	default:
		return fmt.Errorf("%w: 0x%02x", errUnknownProtocolTag, tag)
	}
}

// close stops accepting new connections. Idempotent.
func (l *listener) close() error {
	l.shuttingDown.Store(true)
	return l.ln.Close()
}

// nudge sends a loopback Noop frame to unstick a blocked Accept call.
func (l *listener) nudge() {
	frame, err := encodeFrame(tagNoop, noopMessage{})
	if err != nil {
		return
	}
	conn, err := net.DialTimeout("tcp", l.addr(), dialTimeout)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.Write(frame)
}
