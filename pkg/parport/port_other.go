//go:build !linux

package parport

import "fmt"

func openPPDev(path string) (Port, error) {
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
}

func openIOPort(devPort string, base uint16) (Port, error) {
	return nil, fmt.Errorf("0x%03X: %w", base, ErrUnsupported)
}
