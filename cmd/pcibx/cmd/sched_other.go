//go:build !linux

package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/pcibx/internal/config"
)

func setScheduler(policy string) error {
	switch policy {
	case config.SchedNormal, "":
		return nil
	}
	return fmt.Errorf("policy %q is only supported on linux", policy)
}
