//go:build linux

package driver

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// createWakeFD creates an eventfd for cross-thread wakeup, adapted from the
// teacher's wakeup_linux.go. The single fd serves as both read and write
// end, unlike the pipe fallback Darwin needs.
func createWakeFD() (readFD, writeFD int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

func closeWakeFD(readFD, writeFD int) error {
	return unix.Close(readFD)
}

func writeWake(writeFD int) error {
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	_, err := unix.Write(writeFD, buf)
	return err
}

func drainWake(readFD int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(readFD, buf[:]); err != nil {
			return
		}
	}
}
