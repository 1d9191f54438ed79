//go:build darwin

package driver

import "golang.org/x/sys/unix"

// createWakeFD creates a self-pipe for cross-thread wakeup (Darwin has no
// eventfd), adapted from the teacher's wakeup_darwin.go.
func createWakeFD() (readFD, writeFD int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, err
		}
	}
	return fds[0], fds[1], nil
}

func closeWakeFD(readFD, writeFD int) error {
	_ = unix.Close(writeFD)
	return unix.Close(readFD)
}

func writeWake(writeFD int) error {
	var b [1]byte
	_, err := unix.Write(writeFD, b[:])
	return err
}

func drainWake(readFD int) {
	var buf [64]byte
	for {
		if _, err := unix.Read(readFD, buf[:]); err != nil {
			return
		}
	}
}
