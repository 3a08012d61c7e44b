//go:build !linux

package tunnel

import (
	"net"
	"time"
)

// setDeviceKeepalive falls back to the portable stdlib knobs on non-Linux
// platforms, where TCP_KEEPIDLE/INTVL/CNT aren't exposed the same way.
func setDeviceKeepalive(conn *net.TCPConn) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	return conn.SetKeepAlivePeriod(60 * time.Second)
}
