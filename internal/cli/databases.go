package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewDatabasesCommand creates the databases command group.
func NewDatabasesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "databases",
		Short: "Manage databases on the engine",
	}

	cmd.AddCommand(newDatabasesListCommand(rootOpts))
	cmd.AddCommand(newDatabasesCreateCommand(rootOpts))
	cmd.AddCommand(newDatabasesDeleteCommand(rootOpts))
	cmd.AddCommand(newDatabasesContainsCommand(rootOpts))
	cmd.AddCommand(newDatabasesSchemaCommand(rootOpts))

	return cmd
}

func newDatabasesListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List all databases",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDriver(opts)
			if err != nil {
				return err
			}
			defer d.Close()

			names, err := d.Databases().All()
			if err != nil {
				return WrapExitError(ExitFailure, "listing databases", err)
			}
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			if opts.Format == "json" {
				return f.Success(names)
			}
			if len(names) == 0 {
				return f.Success("no databases")
			}
			return f.Success(strings.Join(names, "\n"))
		},
	}
}

func newDatabasesCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "create <name>",
		Short:         "Create a database",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDriver(opts)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Databases().Create(args[0]); err != nil {
				return WrapExitError(ExitFailure, "creating database "+args[0], err)
			}
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			return f.Success(fmt.Sprintf("created %s", args[0]))
		},
	}
}

func newDatabasesDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a database",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDriver(opts)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Databases().Delete(args[0]); err != nil {
				return WrapExitError(ExitFailure, "deleting database "+args[0], err)
			}
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			return f.Success(fmt.Sprintf("deleted %s", args[0]))
		},
	}
}

func newDatabasesContainsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "contains <name>",
		Short:         "Check whether a database exists",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDriver(opts)
			if err != nil {
				return err
			}
			defer d.Close()

			exists, err := d.Databases().Contains(args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "checking database "+args[0], err)
			}
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			if opts.Format == "json" {
				return f.Success(exists)
			}
			return f.Success(fmt.Sprintf("%t", exists))
		},
	}
}

func newDatabasesSchemaCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "schema <name>",
		Short:         "Print a database's schema",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDriver(opts)
			if err != nil {
				return err
			}
			defer d.Close()

			schema, err := d.Databases().Schema(args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "fetching schema of "+args[0], err)
			}
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			return f.Success(schema)
		},
	}
}
