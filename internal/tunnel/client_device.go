package tunnel

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
)

// DefaultLocalAddr is where a device client forwards tunneled connections
// when the operator hasn't pointed it at a different local service.
const DefaultLocalAddr = "127.0.0.1:80"

// DeviceClient runs on a NAT-bound device and keeps a control connection
// open to a tunnel server, opening one data connection per incoming
// session and bridging it to a local service.
type DeviceClient struct {
	ServerAddr string
	LocalAddr  string
	DeviceID   DeviceID
	Logger     *slog.Logger
}

// Run registers with the server and services NEW_CONNECTION requests until
// ctx is cancelled or the control connection drops.
func (c *DeviceClient) Run(ctx context.Context) error {
	localAddr := c.LocalAddr
	if localAddr == "" {
		localAddr = DefaultLocalAddr
	}

	control, err := net.Dial("tcp", c.ServerAddr)
	if err != nil {
		return fmt.Errorf("tunnel: connect control channel: %w", err)
	}
	defer control.Close()

	if _, err := fmt.Fprintf(control, "DEVICE %s\n", c.DeviceID.String()); err != nil {
		return fmt.Errorf("tunnel: register device: %w", err)
	}
	c.Logger.Info("registered with tunnel server", "device", c.DeviceID.String())

	go func() {
		<-ctx.Done()
		control.Close()
	}()

	reader := bufio.NewReader(control)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("tunnel: control connection closed: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		if !strings.HasPrefix(line, "NEW_CONNECTION ") {
			c.Logger.Warn("unknown control message", "line", line)
			continue
		}
		sessionIDStr := strings.TrimSpace(strings.TrimPrefix(line, "NEW_CONNECTION "))
		go c.serveSession(sessionIDStr, localAddr)
	}
}

func (c *DeviceClient) serveSession(sessionIDStr, localAddr string) {
	sessionConn, err := net.Dial("tcp", c.ServerAddr)
	if err != nil {
		c.Logger.Warn("session dial failed", "session", sessionIDStr, "error", err)
		return
	}
	defer sessionConn.Close()

	if _, err := fmt.Fprintf(sessionConn, "SESSION %s\n", sessionIDStr); err != nil {
		c.Logger.Warn("session handoff write failed", "session", sessionIDStr, "error", err)
		return
	}

	localConn, err := net.Dial("tcp", localAddr)
	if err != nil {
		c.Logger.Warn("local service dial failed", "session", sessionIDStr, "local_addr", localAddr, "error", err)
		return
	}
	defer localConn.Close()

	start := time.Now()
	copyBidirectional(localConn, sessionConn)
	c.Logger.Debug("session closed", "session", sessionIDStr, "duration", time.Since(start))
}
