package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/blebridge/internal/bledb"
	"github.com/srg/blebridge/internal/registry"
	"github.com/srg/blebridge/pkg/config"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file, then print every configured
device with the services and characteristics the bridge will bind.`,
	Args: cobra.NoArgs,
	RunE: runCheckConfig,
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	bad := color.New(color.FgRed, color.Bold)

	cfg, err := config.Load(configPath)
	if err != nil {
		bad.Fprintf(out, "✗ %s\n", configPath)
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	reg, err := registry.New(cfg.Accessories)
	if err != nil {
		bad.Fprintf(out, "✗ %s\n", configPath)
		return err
	}

	color.New(color.FgGreen, color.Bold).Fprintf(out, "✓ %s: %d accessories\n", configPath, reg.Len())
	for _, entry := range reg.Entries() {
		printEntry(out, entry)
	}
	return nil
}

func printEntry(w io.Writer, entry *registry.Entry) {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)

	header.Fprintf(w, "\n%s", entry.ID)
	fmt.Fprintf(w, " %q  %s  model=%s\n", entry.Name, entry.Address, entry.Model)
	for _, svc := range entry.Services {
		fmt.Fprintf(w, "  %s %s", svc.DisplayClass, dim.Sprintf("(%s)", svc.UUID))
		fmt.Fprintln(w)
		for _, uuid := range svc.CharacteristicUUIDs() {
			ch := svc.Characteristics[uuid]
			fmt.Fprintf(w, "    %-24s %-34s %s\n", ch.DisplayClass, uuid, describeCharacteristic(ch))
		}
	}
}

func describeCharacteristic(ch *registry.CharacteristicSpec) string {
	parts := []string{string(ch.Format)}
	if name := bledb.LookupCharacteristic(ch.UUID); name != "" {
		parts = append(parts, name)
	}
	if ch.Identify {
		parts = append(parts, "identify")
	}
	return strings.Join(parts, ", ")
}
