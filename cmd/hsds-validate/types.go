package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hsds-validator/internal/resources"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List resource types that have a schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, t := range newCatalog(newLogger(cmd)).Types() {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema <type>",
	Short: "Print the schema of a resource type as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := newCatalog(newLogger(cmd)).ResolveSchema(resources.Type(args[0]))
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	rootCmd.AddCommand(typesCmd, schemaCmd)
}
