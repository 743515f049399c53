//go:build linux

package parport

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func classifyOpenErr(err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return err
	}
	switch errno {
	case unix.EACCES, unix.EPERM:
		return fmt.Errorf("%w: %v", ErrAccessDenied, errno)
	case unix.ENOENT, unix.ENODEV, unix.ENXIO:
		return fmt.Errorf("%w: %v", ErrNotFound, errno)
	case unix.EBUSY, unix.EWOULDBLOCK:
		return fmt.Errorf("%w: %v", ErrBusy, errno)
	}
	return err
}

// classifyIOErr separates errors that mean the device is gone from transient
// transaction failures.
func classifyIOErr(op string, err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EBADF, unix.ENODEV, unix.ENXIO:
			return fmt.Errorf("%w: %s: %v", ErrClosed, op, errno)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrIO, op, err)
}
