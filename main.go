// Package main provides the entry point for the cardshuffler CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/cardshuffler/internal/cache"
	"github.com/dgnsrekt/cardshuffler/internal/shuffle"
	"github.com/dgnsrekt/cardshuffler/internal/speed"
	"github.com/dgnsrekt/cardshuffler/ui"
)

const appName = "cardshuffler"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	offline    bool
	mouse      bool
	width      uint

	rootCmd = &cobra.Command{
		Use:   "cardshuffler",
		Short: "Shuffle through your card collection in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nShuffle through your card collection, %s, right in the terminal.", keyword("fast")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: func(*cobra.Command, []string) error {
			return runTUI()
		},
	}

	shuffleCmd = &cobra.Command{
		Use:     "shuffle",
		Short:   "Open the interactive shuffler",
		Example: paragraph("cardshuffler shuffle\ncardshuffler shuffle --offline"),
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runTUI()
		},
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file %s: %w", configFile, err)
		}
	}

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	offline = viper.GetBool("offline")
	mouse = viper.GetBool("mouse")

	if err := validateAPIURL(viper.GetString("api.url")); err != nil {
		return err
	}

	switch cache.Backend(viper.GetString("cache.backend")) {
	case cache.BackendDisk, cache.BackendSQLite, cache.BackendMemory:
	default:
		return fmt.Errorf("unknown cache backend %q: use disk, sqlite or memory", viper.GetString("cache.backend"))
	}

	if ttl := viper.GetDuration("cache.ttl"); ttl <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", viper.GetString("cache.ttl"))
	}

	if q := viper.GetInt("compress.quality"); q < 1 || q > 100 {
		return fmt.Errorf("compress.quality must be between 1 and 100, got %d", q)
	}
	if w := viper.GetInt("compress.max_width"); w < 1 {
		return fmt.Errorf("compress.max_width must be positive, got %d", w)
	}

	if s := viper.GetInt("shuffle.speed"); s != 0 && (s < speed.Min || s > speed.Max) {
		return fmt.Errorf("shuffle.speed must be between %d and %d, got %d", speed.Min, speed.Max, s)
	}

	// Detect terminal width
	width = 80
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = uint(min(w, 120)) //nolint:gosec
		}
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return os.ExpandEnv(expanded)
}

func defaultCacheDir() string {
	dir, err := gap.NewScope(gap.User, appName).CacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return dir
}

func runTUI() error {
	// Read environment to get UI overrides
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close() //nolint:errcheck

	engine := shuffle.New(shuffle.Options{Logger: log.Default()})
	defer engine.Close() //nolint:errcheck

	cfg.Speed = viper.GetInt("shuffle.speed")
	cfg.Offline = offline
	cfg.EnableMouse = mouse
	if sess.backend != cache.BackendMemory {
		cfg.CacheDir = sess.cacheDir
	}

	if _, err := ui.NewProgram(cfg, sess.ctrl, engine).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	flags.String("api", "", "collection API base URL")
	flags.String("cache", "", "cache backend: disk, sqlite or memory")
	flags.Bool("offline", false, "use the cached collection without contacting the API")
	flags.Bool("debug", false, "write debug logs")
	rootCmd.Flags().BoolP("mouse", "m", false, "enable mouse support (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("api.url", flags.Lookup("api"))
	_ = viper.BindPFlag("cache.backend", flags.Lookup("cache"))
	_ = viper.BindPFlag("offline", flags.Lookup("offline"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("api.url", "http://localhost:5000/api")
	viper.SetDefault("api.timeout", 10*time.Second)
	viper.SetDefault("api.rate", 10)
	viper.SetDefault("cache.backend", string(cache.BackendDisk))
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.ttl", 5*time.Minute)
	viper.SetDefault("cache.max_size", 64)
	viper.SetDefault("compress.quality", 70)
	viper.SetDefault("compress.max_width", 800)
	viper.SetDefault("shuffle.speed", 0)

	rootCmd.AddCommand(
		shuffleCmd,
		listCmd,
		showCmd,
		addCmd,
		updateCmd,
		deleteCmd,
		clearCmd,
		speedCmd,
		statusCmd,
		configCmd,
		manCmd,
	)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("CARDSHUFFLER_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], appName+".yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
