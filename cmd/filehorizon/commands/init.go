package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filehorizon/filehorizon/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a starter configuration file",
	Long: `Initialize a starter FileHorizon configuration file: one watched inbox
directory routed to a local archive destination.

By default, the configuration file is created at
$XDG_CONFIG_HOME/filehorizon/config.yaml. Use --config to specify a custom
path.

Examples:
  # Initialize with default location
  filehorizon init

  # Initialize with custom path
  filehorizon init --config /etc/filehorizon/config.yaml

  # Force overwrite existing config
  filehorizon init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if err := config.WriteStarterConfig(configPath, initForce); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file: declare your sources, destinations and rules")
	fmt.Println("  2. Start the pipeline with: filehorizon start")
	fmt.Printf("  3. Or specify custom config: filehorizon start --config %s\n", configPath)
	fmt.Println("\nCredentials note:")
	fmt.Println("  Reference secrets with password_secret instead of inline passwords:")
	fmt.Printf("    password_secret: partner-sftp  # reads %sPARTNER_SFTP\n", config.DefaultSecretPrefix)

	return nil
}
