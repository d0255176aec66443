package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# collection API
api:
  # base URL of the card collection API
  url: "http://localhost:5000/api"
  # per-request timeout
  timeout: "10s"
  # requests per second
  rate: 10

# local cache
cache:
  # backend: disk, sqlite or memory
  backend: "disk"
  # directory for cache files (default: user cache dir)
  # dir: "~/.cache/cardshuffler"
  # how long a cached collection is served without refetching
  ttl: "5m"
  # maximum cache size in megabytes
  max_size: 64

# image compression applied before upload
compress:
  # JPEG quality, 1-100
  quality: 70
  # wider images are scaled down to this width
  max_width: 800

shuffle:
  # initial speed, 1-100 (0 uses the last saved speed)
  speed: 0

# mouse support (TUI-mode only)
mouse: false
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the cardshuffler config file",
	Long:    paragraph(fmt.Sprintf("\n%s the cardshuffler config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("cardshuffler config\ncardshuffler config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Cardshuffler", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

// ensureConfigFile writes the default configuration to configFile unless
// a file already exists there.
func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}

	switch ext := path.Ext(configFile); ext {
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("'%s' is not a supported configuration type: use '.yaml' or '.yml'", ext)
	}

	_, err := os.Stat(configFile)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("unable to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	log.Debug("Wrote default configuration", "path", configFile)
	return nil
}
