package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelgraph/kestrel-go/driver"
	"github.com/kestrelgraph/kestrel-go/internal/config"
)

// QueryCmdOptions holds flags for the query command.
type QueryCmdOptions struct {
	*RootOptions
	Database string
	TxnType  string
	Commit   bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <statement>",
		Short: "Run a query against a database",
		Long: `Run a query against a database.

The transaction type controls what the statement may do: read transactions
only retrieve data, write transactions may modify data, and schema
transactions may change the schema. Write and schema transactions are rolled
back unless --commit is given.

Example:
  kestrel query --database orders --type read 'SELECT id, total FROM orders'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Database, "database", "d", "", "database to query (required)")
	cmd.Flags().StringVarP(&opts.TxnType, "type", "t", "read", "transaction type (read|write|schema)")
	cmd.Flags().BoolVar(&opts.Commit, "commit", false, "commit the transaction on success")
	_ = cmd.MarkFlagRequired("database")

	return cmd
}

func runQuery(opts *QueryCmdOptions, statement string, cmd *cobra.Command) error {
	typ, err := parseTxnType(opts.TxnType)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --type", err)
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	d, err := openConfigured(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	txn, err := d.Transaction(opts.Database, typ)
	if err != nil {
		return WrapExitError(ExitFailure, "opening transaction", err)
	}
	defer txn.Close()

	qopts := queryOptions(cfg)
	if qopts != nil {
		defer qopts.Close()
	}
	results, err := txn.QueryWithOptions(statement, qopts)
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}

	if opts.Commit {
		if typ == driver.Read {
			return NewExitError(ExitCommandError, "--commit is meaningless for read transactions")
		}
		if err := txn.Commit(); err != nil {
			return WrapExitError(ExitFailure, "commit failed", err)
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return f.Success(results)
	}
	if results == nil {
		return f.Success("ok (no results)")
	}
	for _, row := range results {
		line, err := json.Marshal(row)
		if err != nil {
			return WrapExitError(ExitFailure, "rendering results", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(line))
	}
	return nil
}

// queryOptions builds driver query options from the config's query
// defaults. Returns nil when the config leaves every option unset, so the
// engine's own defaults apply.
func queryOptions(cfg *config.Config) *driver.QueryOptions {
	if cfg.Query.IncludeInstanceTypes == nil && cfg.Query.PrefetchSize == nil {
		return nil
	}
	opts := driver.NewQueryOptions()
	if cfg.Query.IncludeInstanceTypes != nil {
		opts.SetIncludeInstanceTypes(*cfg.Query.IncludeInstanceTypes)
	}
	if cfg.Query.PrefetchSize != nil {
		opts.SetPrefetchSize(*cfg.Query.PrefetchSize)
	}
	return opts
}

func parseTxnType(s string) (driver.TransactionType, error) {
	switch s {
	case "read":
		return driver.Read, nil
	case "write":
		return driver.Write, nil
	case "schema":
		return driver.Schema, nil
	default:
		return driver.Read, fmt.Errorf("unknown transaction type %q: must be read, write, or schema", s)
	}
}
