package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# log level: debug, info, warn or error
log_level: info
# time clips by the clock instead of playing them
mute: false
# entries of conversation memory kept per character
memory_limit: 20

session:
  # 0 means the conversation runs until stopped
  max_turns: 12
  # round_robin or dynamic
  turn_mode: dynamic
  # shared scene description added to every system prompt
  context: ""
  # pause between turns
  turn_delay: 1s

llm:
  timeout: 60s
  max_tokens: 400
  temperature: 0.9
  # 0 disables client-side rate limiting
  requests_per_minute: 0

speech:
  # engines tried after a character's own engine; silence is always last
  fallback: []
  timeout: 30s
  bench_after: 3
  bench_for: 1m
  piper:
    binary: piper
    model: ""
  openai:
    model: tts-1

emotion:
  # keyword, llm or none
  classifier: keyword
  timeout: 3s

cache:
  enabled: true
  memory_mb: 64
  disk_mb: 512
  ttl: 168h

server:
  addr: 127.0.0.1:8787

# API keys are read from the environment or a .env file
# (OPENAI_API_KEY, ANTHROPIC_API_KEY, DASHSCOPE_API_KEY, OPENROUTER_API_KEY).
characters:
  - id: mika
    name: Mika
    personality: A blunt systems engineer who distrusts hype and says so.
    llm: {provider: mock}
    speech: {engine: mock, voice: "mika"}
    enabled: true
  - id: ren
    name: Ren
    personality: A dreamy poet who finds something moving in every topic.
    llm: {provider: mock}
    speech: {engine: mock, voice: "ren"}
    enabled: true
  - id: sol
    name: Sol
    personality: A cheerful shopkeeper who loves gossip and hates being ignored.
    llm: {provider: mock}
    speech: {engine: mock, voice: "sol"}
    enabled: true

# per-emotion overrides of the motion table
# motions:
#   happy:
#     clips: [wave, nod]
#     expression: smile
#     weight: 0.8
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the troupe config file",
	Long:    paragraph(fmt.Sprintf("\n%s the troupe config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("troupe config\ntroupe config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Troupe", configFile)
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

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
