// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nappa85/ingress-intel-go/internal/config"
	"github.com/nappa85/ingress-intel-go/internal/observability"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "intel",
	Short: "intel queries the Ingress Intel map's private API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1. Initialize configuration loading (Viper)
		if err := initializeConfig(); err != nil {
			basicLogger, _ := zap.NewDevelopment()
			basicLogger.Error("Failed to initialize configuration", zap.Error(err))
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		// 2. Unmarshal the configuration
		var cfg config.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "ingress-intel"})
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}

		// 3. Validate the configuration
		if err := cfg.Validate(); err != nil {
			observability.InitializeLogger(cfg.Logger)
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// 4. Store the configuration globally
		config.Set(&cfg)

		// 5. Initialize the logger
		observability.InitializeLogger(cfg.Logger)

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// It accepts a context passed from main.go for graceful shutdown.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			// Avoid logging context.Canceled errors as failures, as they
			// are expected during graceful shutdown.
			if ctx.Err() == nil {
				logger.Error("Command execution failed", zap.Error(err))
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("email", "", "identity provider email")
	rootCmd.PersistentFlags().String("password", "", "identity provider password")
	rootCmd.PersistentFlags().String("cookies", "", "Cookie-header-style session cookies")
	_ = viper.BindPFlag("intel.email", rootCmd.PersistentFlags().Lookup("email"))
	_ = viper.BindPFlag("intel.password", rootCmd.PersistentFlags().Lookup("password"))
	_ = viper.BindPFlag("intel.cookies", rootCmd.PersistentFlags().Lookup("cookies"))

	rootCmd.AddCommand(portalCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(scanCmd)
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig() error {
	// Set default values so the app can run with a minimal config.
	config.SetDefaults(viper.GetViper())

	// 1. Set up config file search paths
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// 2. Environment Variable Configuration
	viper.SetEnvPrefix("INTEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind credential environment variables so they are picked
	// up without a config file.
	_ = viper.BindEnv("intel.email", "INTEL_EMAIL")
	_ = viper.BindEnv("intel.password", "INTEL_PASSWORD")
	_ = viper.BindEnv("intel.cookies", "INTEL_COOKIES")

	// 3. Read the configuration file
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if the config file is not found, but report other
		// errors like parsing issues.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
