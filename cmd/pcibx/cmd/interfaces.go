package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/pcibx/pkg/parport/discover"
)

func newInterfacesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces",
		Short: "List parallel port interfaces",
		Long: `Scan the host for interfaces that can reach the board: ppdev nodes, legacy
I/O port bases and USB-to-parallel bridges. USB bridges are printer-class only
and cannot bit-bang the control lines; they are listed so you can tell why a
board on one does not answer.`,
		Args: cobra.NoArgs,
		RunE: runInterfaces,
	}
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	// A failed USB scan still leaves the local ports worth listing.
	infos, err := discover.Interfaces(ctx)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: discover interfaces: %v\n", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Detected interfaces:")
	for _, iface := range infos {
		note := ""
		if !iface.Usable {
			note = "  (not usable for bit-banging)"
		}
		switch iface.Kind {
		case discover.KindUSB:
			fmt.Fprintf(out, "  - %s [%s] (VID:PID %04X:%04X)%s\n", iface.Label(), iface.Kind, iface.VendorID, iface.ProductID, note)
		default:
			fmt.Fprintf(out, "  - %s [%s]%s\n", iface.Label(), iface.Kind, note)
		}
	}
	return nil
}
