package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/isometry/terraform-provider-ldapmodel/internal/connector"
)

func newModelsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models defined in the models file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(a.v)
			if err != nil {
				return err
			}
			for _, name := range settings.ModelNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newPingCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Bind to the directory and check the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withConnector(cmd.Context(), func(conn *connector.Connector) error {
				if err := conn.Ping(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}

func newCountCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count MODEL [field=value ...]",
		Short: "Count the records of a model matching every field=value",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			where, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			return a.withConnector(cmd.Context(), func(conn *connector.Connector) error {
				count, err := conn.Count(cmd.Context(), args[0], connector.Predicate(where))
				if err != nil {
					return err
				}
				if count < 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning: directory search failed, count unavailable")
				}
				fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
}

func newAllCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "all MODEL [field=value ...]",
		Short: "Print the records of a model matching every field=value",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			where, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			return a.withConnector(cmd.Context(), func(conn *connector.Connector) error {
				records, err := conn.All(cmd.Context(), args[0], &connector.Filter{Where: connector.Predicate(where)})
				if err != nil {
					return err
				}
				if records == nil {
					records = []connector.Record{}
				}
				return writeRecords(cmd.OutOrStdout(), a.v.GetString(keyOutput), records)
			})
		},
	}
}

func newCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create MODEL field=value ...",
		Short: "Create a record and print its id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			return a.withConnector(cmd.Context(), func(conn *connector.Connector) error {
				id, err := conn.Create(cmd.Context(), args[0], record)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func newUpdateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update MODEL ID field=value ...",
		Short: "Replace attributes of the record with the given id",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}

			return a.withConnector(cmd.Context(), func(conn *connector.Connector) error {
				id, err := conn.UpdateAttributes(cmd.Context(), args[0], args[1], record)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

// parseAssignments turns field=value arguments into a record. A repeated
// field becomes a multi-valued attribute.
func parseAssignments(args []string) (connector.Record, error) {
	record := make(connector.Record, len(args))
	for _, arg := range args {
		field, value, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}

		switch existing := record[field].(type) {
		case nil:
			record[field] = value
		case string:
			record[field] = []string{existing, value}
		case []string:
			record[field] = append(existing, value)
		default:
			return nil, errors.New("unexpected value type")
		}
	}
	return record, nil
}
