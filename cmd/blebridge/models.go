package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/blebridge/internal/registry"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the supported device models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		header := color.New(color.FgCyan, color.Bold)

		for i, model := range registry.Models() {
			if i > 0 {
				fmt.Fprintln(out)
			}
			header.Fprint(out, model.Name)
			fmt.Fprintf(out, "  %s\n", model.Description)
			for _, svc := range model.Services {
				fmt.Fprintf(out, "  %s (%s)\n", svc.DisplayClass, svc.UUID)
				for _, uuid := range svc.CharacteristicUUIDs() {
					ch := svc.Characteristics[uuid]
					fmt.Fprintf(out, "    %-24s %-34s %s\n", ch.DisplayClass, uuid, describeCharacteristic(ch))
				}
			}
		}
		return nil
	},
}
