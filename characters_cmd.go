package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/troupe/character"
	"github.com/dgnsrekt/troupe/internal/config"
)

const nameColumn = 16

var charactersCmd = &cobra.Command{
	Use:     "characters [QUERY]",
	Aliases: []string{"ls"},
	Short:   "List the configured characters",
	Long:    paragraph(fmt.Sprintf("\n%s the characters in the config file, best fuzzy matches first when a query is given.", keyword("List"))),
	Example: paragraph("troupe characters\ntroupe characters mik"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err //nolint:wrapcheck
		}

		profiles := cfg.Characters
		if len(args) == 1 {
			profiles = matchCharacters(profiles, args[0])
		}
		w := cmd.OutOrStdout()
		printCharacters(w, profiles)

		if cfg.Cache.Enabled {
			b, err := config.NewBuilder(cfg, config.Credentials{}, nil, log.Default())
			if err != nil {
				return err //nolint:wrapcheck
			}
			defer b.Close() //nolint:errcheck
			fmt.Fprintln(w, faintStyle("\naudio cache: "+b.Cache().Stats().String()))
		}
		return nil
	},
}

type profileSource []character.Profile

func (p profileSource) String(i int) string { return p[i].ID + " " + p[i].Name() }
func (p profileSource) Len() int            { return len(p) }

// matchCharacters returns the profiles matching query, best match first.
func matchCharacters(profiles []character.Profile, query string) []character.Profile {
	matches := fuzzy.FindFrom(query, profileSource(profiles))
	out := make([]character.Profile, 0, len(matches))
	for _, m := range matches {
		out = append(out, profiles[m.Index])
	}
	return out
}

// onlyCharacters disables every profile that matches none of the patterns.
// Matching profiles are enabled.
func onlyCharacters(profiles []character.Profile, patterns []string) []character.Profile {
	if len(patterns) == 0 {
		return profiles
	}
	keep := make(map[string]bool)
	for _, pat := range patterns {
		for _, p := range matchCharacters(profiles, strings.TrimSpace(pat)) {
			keep[p.ID] = true
		}
	}
	out := make([]character.Profile, len(profiles))
	for i, p := range profiles {
		p.Enabled = keep[p.ID]
		out[i] = p
	}
	return out
}

func printCharacters(w io.Writer, profiles []character.Profile) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No characters found.")
		return
	}
	for _, p := range profiles {
		mark := keyword("●")
		if !p.Enabled {
			mark = faintStyle("○")
		}
		name := runewidth.FillRight(runewidth.Truncate(p.Name(), nameColumn, "…"), nameColumn)
		model := p.LLM.Provider
		if p.LLM.Model != "" {
			model += "/" + p.LLM.Model
		}
		voice := p.Speech.Engine
		if p.Speech.VoiceID != "" {
			voice += ":" + p.Speech.VoiceID
		}
		fmt.Fprintf(w, "%s %s %-12s %s  %s\n", mark, name, p.ID, faintStyle(model), faintStyle(voice))
	}
}
