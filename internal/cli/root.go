package cli

import (
	"context"
	"os"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflogtest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/isometry/terraform-provider-ldapmodel/internal/connector"
	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

// Dialer opens a directory session for the given configuration.
type Dialer func(config *ldapclient.SessionConfig) (connector.Directory, error)

func dialSession(config *ldapclient.SessionConfig) (connector.Directory, error) {
	session, err := ldapclient.NewSession(config)
	if err != nil {
		return nil, err
	}
	return session, nil
}

type app struct {
	v    *viper.Viper
	dial Dialer
}

// NewRootCommand returns the ldapmodel command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(dialSession)
}

func newRootCommand(dial Dialer) *cobra.Command {
	a := &app{v: newViper(), dial: dial}

	cmd := &cobra.Command{
		Use:   "ldapmodel",
		Short: "Query and edit model records stored in an LDAP directory",
		Long: `ldapmodel reads the models file used by the Terraform provider and runs
model operations against the directory it describes.

Connection settings from the file can be overridden with flags or with
LDAPMODEL_* environment variables, e.g. LDAPMODEL_BIND_PASSWORD.

Usage examples:

1. Count people named alice:

	ldapmodel count person name=alice --models-file models.yaml

2. List every group as YAML:

	ldapmodel all group --output yaml

3. Create a record and print its id:

	ldapmodel create person name=alice email=a@example.com
`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if a.v.GetBool(keyDebug) {
				// JSON log lines on stderr.
				ctx = tflogtest.RootLogger(ctx, os.Stderr)
			}
			cmd.SetContext(ldapclient.WithSubsystems(ctx))
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("models-file", "", "Path to the YAML models file")
	flags.String("url", "", "Directory URL, overrides the models file")
	flags.String("bind-dn", "", "Bind principal, overrides the models file")
	flags.String("bind-password", "", "Bind credential, overrides the models file")
	flags.String("search-base", "", "Default search base, overrides the models file")
	flags.Duration("timeout", 0, "Connection and request timeout, overrides the models file")
	flags.Bool("start-tls", false, "Upgrade ldap:// connections with StartTLS")
	flags.Bool("debug", false, "Write debug logs to stderr")
	flags.StringP("output", "o", outputJSON, "Output format for records: json, yaml or table")

	cobra.CheckErr(bindFlags(a.v, flags))

	cmd.AddCommand(
		newModelsCommand(a),
		newPingCommand(a),
		newCountCommand(a),
		newAllCommand(a),
		newCreateCommand(a),
		newUpdateCommand(a),
	)

	return cmd
}

// withConnector connects, runs fn and disconnects.
func (a *app) withConnector(ctx context.Context, fn func(*connector.Connector) error) error {
	settings, err := loadSettings(a.v)
	if err != nil {
		return err
	}

	dir, err := a.dial(settings.SessionConfig())
	if err != nil {
		return err
	}

	conn, err := connector.NewConnector(settings, dir)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	ldapclient.LogPerformance(ctx, ldapclient.SubsystemConnector, "connect", time.Since(start), map[string]any{
		"url": settings.URL,
	})

	defer func() {
		_ = conn.Disconnect(ctx)
	}()

	return fn(conn)
}
