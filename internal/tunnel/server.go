package tunnel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/talebox/slepau/internal/events"
	"github.com/talebox/slepau/internal/health"
)

const (
	sessionWaitTimeout = 30 * time.Second
	peekBufferSize     = 8192
)

// Server owns the two listening sockets and the shared registry bridging
// them.
type Server struct {
	Registry *Registry
	Logger   *slog.Logger
	Audit    *AuditLog       // optional; nil disables audit logging
	Health   *health.Tracker // optional; nil disables health tracking
	Events   *events.Bus     // optional; nil disables the admin /events stream
}

// ServeDevicePort accepts device control/data connections until ctx is
// cancelled.
func (s *Server) ServeDevicePort(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tunnel: listen device port: %w", err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.Logger.Info("device port listening", "addr", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.Logger.Warn("device accept error", "error", err)
				continue
			}
		}
		go s.handleDeviceConnection(conn)
	}
}

func (s *Server) handleDeviceConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return
	}
	line = strings.TrimRight(line, "\r\n")

	switch {
	case strings.HasPrefix(line, "DEVICE "):
		s.handleDeviceRegister(conn, strings.TrimSpace(strings.TrimPrefix(line, "DEVICE ")))
	case strings.HasPrefix(line, "SESSION "):
		s.handleSessionHandoff(conn, strings.TrimSpace(strings.TrimPrefix(line, "SESSION ")))
	default:
		s.Logger.Warn("unknown control line", "line", line, "error", errUnknownControlLine)
		conn.Close()
	}
}

func (s *Server) handleDeviceRegister(conn net.Conn, idStr string) {
	id, err := ParseDeviceID(idStr)
	if err != nil {
		s.Logger.Warn("bad device id", "raw", idStr, "error", err)
		conn.Close()
		return
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := setDeviceKeepalive(tcp); err != nil {
			s.Logger.Warn("keepalive tuning failed", "device", id.String(), "error", err)
		}
	}

	if old := s.Registry.PutDevice(id, conn); old != nil {
		old.Close()
	}
	s.Logger.Info("device connected", "device", id.String())
	s.auditConnect(id)
	if s.Health != nil {
		s.Health.RecordSuccess(id.String(), 0)
	}

	go s.monitorDevice(id, conn)
}

// monitorDevice polls reads on the control socket with a one-second
// deadline; a read that returns data or times out is ignored, while EOF or
// any other error means the socket is gone.
func (s *Server) monitorDevice(id DeviceID, conn net.Conn) {
	buf := make([]byte, 32)
	for {
		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		_, err := conn.Read(buf)
		if err == nil {
			continue
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		}
		break
	}
	s.Registry.RemoveDevice(id, conn)
	conn.Close()
	s.Logger.Info("device disconnected", "device", id.String())
	s.auditDisconnect(id)
	if s.Health != nil {
		s.Health.RecordError(id.String(), "control channel closed")
	}
}

func (s *Server) handleSessionHandoff(conn net.Conn, idStr string) {
	id, err := ParseSessionID(idStr)
	if err != nil {
		s.Logger.Warn("bad session id", "raw", idStr, "error", err)
		conn.Close()
		return
	}
	slot, ok := s.Registry.TakePending(id)
	if !ok {
		s.Logger.Warn("no pending session", "session", id.String())
		conn.Close()
		return
	}
	slot <- conn
}

// ServeClientPort accepts external HTTP connections and bridges each to
// its subdomain-decoded device until ctx is cancelled.
func (s *Server) ServeClientPort(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tunnel: listen client port: %w", err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.Logger.Info("client port listening", "addr", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.Logger.Warn("client accept error", "error", err)
				continue
			}
		}
		go s.handleClientConnection(conn)
	}
}

func (s *Server) handleClientConnection(conn net.Conn) {
	defer func() {
		// closed by whichever copy loop finishes, or here if we bail early
	}()

	reader := bufio.NewReaderSize(conn, peekBufferSize)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	peeked, err := peek(reader)
	conn.SetReadDeadline(time.Time{})
	if err != nil || len(peeked) == 0 {
		conn.Close()
		return
	}

	host, err := extractHostHeader(string(peeked))
	if err != nil {
		s.Logger.Warn("no host header on client connection", "error", err)
		conn.Close()
		return
	}
	deviceID, err := decodeDeviceIDFromSubdomain(host)
	if err != nil {
		s.Logger.Warn("could not decode device id from host", "host", host, "error", err)
		conn.Close()
		return
	}

	deviceConn, ok := s.Registry.GetDevice(deviceID)
	if !ok {
		writeServiceUnavailable(conn)
		conn.Close()
		return
	}

	_, span := otel.Tracer("tunnel").Start(context.Background(), "tunnel.session")
	span.SetAttributes(attribute.String("device_id", deviceID.String()))
	defer span.End()

	sessionID, slot := s.Registry.NewPending()
	span.SetAttributes(attribute.String("session_id", sessionID.String()))
	if _, err := fmt.Fprintf(deviceConn, "NEW_CONNECTION %s\n", sessionID.String()); err != nil {
		s.Registry.CancelPending(sessionID)
		conn.Close()
		span.RecordError(err)
		return
	}

	// client carries the peeked request head in reader's buffer so it is
	// forwarded to the device instead of dropped on the floor.
	client := &peekedConn{Conn: conn, r: reader}

	select {
	case deviceStream := <-slot:
		defer deviceStream.Close()
		defer client.Close()
		copyBidirectional(client, deviceStream)
	case <-time.After(sessionWaitTimeout):
		s.Registry.CancelPending(sessionID)
		s.Logger.Warn("device stream request failed", "session", sessionID.String(), "error", errDeviceStreamFailed)
		conn.Close()
		span.RecordError(errDeviceStreamFailed)
	}
}

// peek ensures at least one byte is buffered in reader without consuming it,
// then returns everything currently buffered — the request line plus
// whatever headers arrived in that first read, available for both routing
// (extractHostHeader) and forwarding (via peekedConn, once bridged).
func peek(reader *bufio.Reader) ([]byte, error) {
	if _, err := reader.Peek(1); err != nil {
		return nil, err
	}
	return reader.Peek(reader.Buffered())
}

// peekedConn reads through r (a bufio.Reader wrapping Conn) so bytes already
// buffered by peek are replayed before reads fall through to the raw
// connection; every other net.Conn method is the underlying Conn's.
type peekedConn struct {
	net.Conn
	r *bufio.Reader
}

func (p *peekedConn) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func extractHostHeader(requestText string) (string, error) {
	for _, line := range strings.Split(requestText, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			break
		}
		if len(line) >= 5 && strings.EqualFold(line[:5], "host:") {
			return strings.TrimSpace(line[5:]), nil
		}
	}
	return "", errMissingHostHeader
}

func decodeDeviceIDFromSubdomain(host string) (DeviceID, error) {
	parts := strings.Split(host, ".")
	if len(parts) == 0 {
		return 0, errInvalidHostFormat
	}
	if id, err := ParseDeviceID(parts[0]); err == nil {
		return id, nil
	}
	if len(parts) > 1 {
		if id, err := ParseDeviceID(parts[1]); err == nil {
			return id, nil
		}
	}
	return 0, errInvalidHostFormat
}

func writeServiceUnavailable(conn net.Conn) {
	body := "Device not connected"
	resp := "HTTP/1.1 503 Service Unavailable\r\nContent-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
	_, _ = io.WriteString(conn, resp)
}

func copyBidirectional(a, b net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(a, b)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(b, a)
		done <- struct{}{}
	}()
	<-done
}
