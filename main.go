// Package main provides the entry point for the troupe CLI application.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/troupe/dialogue"
	"github.com/dgnsrekt/troupe/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	topic      string
	plain      bool
	serve      bool
	transcript string
	only       []string
	style      string
	width      uint
	mouse      bool
	useTUI     bool

	rootCmd = &cobra.Command{
		Use:   "troupe [TOPIC]",
		Short: "Watch a cast of characters talk it out",
		Long: paragraph(
			fmt.Sprintf("\nStart a conversation between LLM-driven characters who %s, one turn at a time.", keyword("speak their lines")),
		),
		Example:          paragraph("troupe \"is a hot dog a sandwich?\"\ntroupe --mode round_robin --max-turns 6 --plain tea\ntroupe --only mika,ren --serve pineapple on pizza"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")

	if _, err := dialogue.ParseTurnMode(viper.GetString("session.turn_mode")); err != nil {
		return err //nolint:wrapcheck
	}
	if _, err := log.ParseLevel(viper.GetString("log_level")); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	useTUI = isTerminal && !plain

	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") {
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func execute(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		topic = strings.Join(args, " ")
	}
	if topic == "" {
		return errors.New("missing topic: pass it as an argument or with --topic")
	}

	closer, err := setupLog(viper.GetString("log_level"), useTUI)
	if err != nil {
		return err
	}
	defer closer() //nolint:errcheck

	return runSession(topic)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&topic, "topic", "", "conversation topic")
	rootCmd.Flags().Int("max-turns", 0, "stop after this many turns (0 runs until stopped)")
	rootCmd.Flags().String("mode", string(dialogue.RoundRobin), "turn policy (round_robin, dynamic)")
	rootCmd.Flags().String("context", "", "scene description shared by every character")
	rootCmd.Flags().Bool("mute", false, "time clips by the clock instead of playing them")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "print lines instead of starting the TUI")
	rootCmd.Flags().BoolVar(&serve, "serve", false, "expose the HTTP control surface and websocket feed")
	rootCmd.Flags().StringVar(&transcript, "transcript", "", "write the conversation to this YAML file")
	rootCmd.Flags().StringSliceVar(&only, "only", nil, "only let characters matching these fuzzy queries speak")
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "transcript style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("session.max_turns", rootCmd.Flags().Lookup("max-turns"))
	_ = viper.BindPFlag("session.turn_mode", rootCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("session.context", rootCmd.Flags().Lookup("context"))
	_ = viper.BindPFlag("mute", rootCmd.Flags().Lookup("mute"))
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	config.SetDefaults(viper.GetViper())
	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)

	rootCmd.AddCommand(configCmd, charactersCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "troupe")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "troupe")}, dirs...)
	}

	if c := os.Getenv("TROUPE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("troupe")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("troupe")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "troupe.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
	// pick up the default roster we just wrote
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		log.Warn("Could not read default configuration", "err", err)
	}
}
