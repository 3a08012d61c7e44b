//go:build linux

package tunnel

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// setDeviceKeepalive tunes a device control socket down to a 60s idle / 1s
// interval / 3 retries probe schedule, so a dead NAT path or power loss is
// detected fast — Go's equivalent of the original's socket2-based tuning.
func setDeviceKeepalive(conn *net.TCPConn) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	if err := conn.SetKeepAlivePeriod(60 * time.Second); err != nil {
		return err
	}
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var ctrlErr error
	err = rawConn.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 60); e != nil {
			ctrlErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 1); e != nil {
			ctrlErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3); e != nil {
			ctrlErr = e
			return
		}
	})
	if err != nil {
		return err
	}
	return ctrlErr
}
