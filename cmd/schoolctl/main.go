// Command schoolctl is a terminal console for the school API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"musicschool_go/client"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configName = ".schoolctl"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", client.ErrorMessage(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schoolctl",
		Short:         "Manage lessons, attendance and finances from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:8080/api", "API base URL")
	flags.String("token", "", "bearer token (saved by login)")
	flags.Duration("timeout", 15*time.Second, "request timeout")
	flags.String("config", "", "config file (default ~/.schoolctl.yaml)")

	root.AddCommand(
		newLoginCmd(),
		newWeekCmd(),
		newMarkCmd(),
		newFinanceCmd(),
		newStudentsCmd(),
		newTeachersCmd(),
		newSmsCmd(),
		newWatchCmd(),
	)
	return root
}

// loadConfig layers flags over SCHOOLCTL_* variables over the config file.
func loadConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("SCHOOLCTL")
	viper.AutomaticEnv()
	for _, name := range []string{"server", "token", "timeout"} {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}

	if file, _ := cmd.Flags().GetString("config"); file != "" {
		viper.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// configPath is where login stores the token.
func configPath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configName+".yaml"), nil
}

func newClient() *client.Client {
	return client.New(
		viper.GetString("server"),
		client.WithToken(viper.GetString("token")),
		client.WithTimeout(viper.GetDuration("timeout")),
	)
}
