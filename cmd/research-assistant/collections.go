// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/assistant"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List Zotero collections",
	Long: `Collections lists the collections of the configured Zotero library.
It needs zotero.api_key and zotero.user_id and checks them first.`,
	RunE: runCollections,
}

func init() {
	collectionsCmd.Flags().Bool("json", false, "output collections as JSON")

	rootCmd.AddCommand(collectionsCmd)
}

func runCollections(cmd *cobra.Command, args []string) error {
	client, err := httpClient()
	if err != nil {
		return err
	}
	zc, err := assistant.ZoteroClient(cmd.Context(), cfg, client, logger)
	if err != nil {
		return err
	}
	cols, err := zc.ListCollections(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cols)
	}

	if len(cols) == 0 {
		fmt.Println("No collections.")
		return nil
	}
	names := make(map[string]string, len(cols))
	for _, c := range cols {
		names[c.Key] = c.Name
	}
	fmt.Fprintf(os.Stdout, "%-10s  %-40s  %s\n", "Key", "Name", "Parent")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 70))
	for _, c := range cols {
		fmt.Fprintf(os.Stdout, "%-10s  %-40s  %s\n", c.Key, c.Name, names[c.Parent])
	}
	fmt.Fprintf(os.Stdout, "\n%d collections\n", len(cols))
	return nil
}
