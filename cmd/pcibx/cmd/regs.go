package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/pcibx/pkg/command"
	"github.com/OpenTraceLab/pcibx/pkg/pcibx"
)

func newRegsCommand() *cobra.Command {
	var pci1 string

	regsCmd := &cobra.Command{
		Use:   "regs",
		Short: "Print the board register map",
		Long: `Print every board register with the address actually driven on the data
lines for the selected slot (register + 0x80 for PCI_2).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slot := pcibx.SlotPCI1
			if cmd.Flags().Changed("pci1") {
				on, err := command.ParseBool(pci1)
				if err != nil {
					return fmt.Errorf("--pci1: %w", err)
				}
				if !on {
					slot = pcibx.SlotPCI2
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Register map for %s (offset 0x%02X):\n", slot, slot.Offset())
			for _, reg := range pcibx.Registers() {
				fmt.Fprintf(out, "  0x%02X  0x%02X  %s\n", uint8(reg), uint8(reg)+slot.Offset(), reg)
			}
			return nil
		},
	}
	regsCmd.Flags().StringVarP(&pci1, "pci1", "P", "", "If true, PCI_1 (default), otherwise PCI_2")
	return regsCmd
}
