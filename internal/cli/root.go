// Package cli implements kosctl, the operator tool for the KOS graph service.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Settings are resolved from flags, KOSCTL_* environment variables and ~/.kosctl/config.yaml.
type Settings struct {
	Server  string
	Token   string
	Output  string
	DSN     string
	Timeout time.Duration
}

type app struct {
	v       *viper.Viper
	cfgFile string
}

func (a *app) settings() Settings {
	return Settings{
		Server:  strings.TrimSuffix(a.v.GetString("server"), "/"),
		Token:   a.v.GetString("token"),
		Output:  a.v.GetString("output"),
		DSN:     a.v.GetString("dsn"),
		Timeout: a.v.GetDuration("timeout"),
	}
}

func (a *app) client() *Client {
	s := a.settings()
	return NewClient(s.Server, s.Token, s.Timeout)
}

func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(home, ".kosctl"))
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("config")
	}

	a.v.SetEnvPrefix("KOSCTL")
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// NewRootCommand builds the kosctl command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{v: viper.New()})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "kosctl",
		Short: "Operate a KOS graph service",
		Long: `kosctl manages a KOS graph service: database migrations, bulk import of
JSON-LD bundles, search reindexing and IRI lookup.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.kosctl/config.yaml)")
	flags.String("server", "http://localhost:8000", "KOS server URL")
	flags.String("token", "", "value of the X-KOS-Auth-Token header")
	flags.String("output", OutputTable, "output format (table, json, yaml)")
	flags.String("dsn", "", "PostgreSQL DSN for migrate commands")
	flags.Duration("timeout", 30*time.Second, "HTTP request timeout")

	for _, name := range []string{"server", "token", "output", "dsn", "timeout"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newMigrateCmd(a),
		newImportCmd(a),
		newReindexCmd(a),
		newLookupCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs kosctl with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}
