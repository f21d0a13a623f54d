package main

import (
	"github.com/spf13/cobra"
	"github.com/verigen/physmem/mem/phys"
)

func init() {
	rootCmd.AddCommand(newSizesCmd())
}

func newSizesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sizes",
		Short: "List supported page granularities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type entry struct {
				Name  string
				Shift uint
				Bytes uint64
			}
			var table []entry
			for _, g := range phys.Granularities() {
				table = append(table, entry{
					Name:  g.String(),
					Shift: g.Shift(),
					Bytes: g.ByteSize(),
				})
			}

			if jsonOut {
				return printJSON(table)
			}
			printInfo("Page granularities (max physical address %#x):\n", uint64(phys.MaxPhysicalAddress))
			for _, e := range table {
				printInfo("  %-6s shift=%-2d size=%#x\n", e.Name, e.Shift, e.Bytes)
			}
			return nil
		},
	}
}
