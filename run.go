package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/troupe/agent"
	"github.com/dgnsrekt/troupe/dialogue"
	"github.com/dgnsrekt/troupe/internal/config"
	"github.com/dgnsrekt/troupe/internal/server"
	"github.com/dgnsrekt/troupe/tts/audio"
	"github.com/dgnsrekt/troupe/ui"
)

func runSession(topic string) error {
	v := viper.GetViper()
	cfg, err := config.Load(v)
	if err != nil {
		return err //nolint:wrapcheck
	}
	cfg.Characters = onlyCharacters(cfg.Characters, only)

	creds, err := config.LoadCredentials(".env")
	if err != nil {
		return err //nolint:wrapcheck
	}

	var player audio.Player
	if !cfg.Mute {
		p, err := audio.NewOtoPlayer(log.Default().WithPrefix("audio"))
		if err != nil {
			log.Warn("audio output unavailable, timing clips instead", "err", err)
		} else {
			player = p
		}
	}

	builder, err := config.NewBuilder(cfg, creds, player, log.Default())
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer builder.Close() //nolint:errcheck

	o, agents, err := builder.Session()
	if err != nil {
		return err //nolint:wrapcheck
	}

	config.Watch(v, log.Default().WithPrefix("config"), func(c *config.Config) {
		c.Characters = onlyCharacters(c.Characters, only)
		builder.Reload(o, c)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if serve {
		srv := server.New(o, log.Default().WithPrefix("server"))
		go func() {
			if err := srv.Run(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("control server stopped", "err", err)
			}
		}()
	}

	if useTUI {
		err = runTUI(ctx, o, agents, topic)
	} else {
		err = runPlain(ctx, o, topic, os.Stdout)
	}
	o.Stop()
	if err != nil {
		return err
	}

	history := o.History().Snapshot()
	if transcript != "" {
		if err := writeTranscript(transcript, o.Session(), history); err != nil {
			return err
		}
		log.Info("wrote transcript", "path", transcript, "turns", len(history))
	}
	return nil
}

func runTUI(ctx context.Context, o *dialogue.Orchestrator, agents []*agent.Agent, topic string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or the flag if unset or invalid
	if cfg.GlamourStyle == "" || validateStyle(cfg.GlamourStyle) != nil {
		cfg.GlamourStyle = style
	}
	cfg.Topic = topic
	cfg.GlamourMaxWidth = width
	cfg.EnableMouse = mouse

	voices := make([]ui.Voice, len(agents))
	for i, a := range agents {
		voices[i] = ui.Voice{ID: a.ID(), Name: a.Name(), Output: a.Output()}
	}

	p := ui.NewProgram(cfg, o, voices)
	if err := o.Start(topic); err != nil {
		return err //nolint:wrapcheck
	}
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	// Run Bubble Tea program
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// runPlain prints each line as it is spoken and a rendered transcript once
// the conversation ends.
func runPlain(ctx context.Context, o *dialogue.Orchestrator, topic string, w io.Writer) error {
	events, unsubscribe := o.Bus().Subscribe(64)
	defer unsubscribe()

	if err := o.Start(topic); err != nil {
		return err //nolint:wrapcheck
	}

	done := o.Done()
	for {
		select {
		case <-ctx.Done():
			o.Stop()
			return printSummary(o, topic, w)
		case <-done:
			drain(w, events)
			return printSummary(o, topic, w)
		case e := <-events:
			printEvent(w, e)
		}
	}
}

// drain prints whatever was published before the session ended.
func drain(w io.Writer, events <-chan dialogue.Event) {
	for {
		select {
		case e := <-events:
			printEvent(w, e)
		default:
			return
		}
	}
}

func printEvent(w io.Writer, e dialogue.Event) {
	switch e.Type {
	case dialogue.EventTurnEnd:
		u := e.Utterance
		if u == nil {
			return
		}
		fmt.Fprintf(w, "%s %s\n", speakerStyle(u.SpeakerName+":"), u.Text)
		log.Debug("turn", "speaker", u.SpeakerID, "emotion", u.Emotion, "motion", u.MotionID)
	case dialogue.EventTurnFailed:
		log.Warn("turn failed", "speaker", e.SpeakerID, "err", e.Error)
	}
}

func printSummary(o *dialogue.Orchestrator, topic string, w io.Writer) error {
	history := o.History().Snapshot()
	if len(history) == 0 {
		return nil
	}
	out, err := ui.Render(ui.Transcript(topic, history), style, int(width)) //nolint:gosec
	if err != nil {
		return fmt.Errorf("unable to render transcript: %w", err)
	}
	s := o.Session()
	fmt.Fprintf(w, "\n%s\n", faintStyle(fmt.Sprintf("%d turns, %s mode", s.TurnCount, s.TurnMode)))
	if _, err := fmt.Fprint(w, out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}
	return nil
}

// transcriptFile is the YAML document written by --transcript.
type transcriptFile struct {
	Topic      string            `yaml:"topic"`
	Mode       dialogue.TurnMode `yaml:"turn_mode"`
	Turns      int               `yaml:"turns"`
	Written    time.Time         `yaml:"written"`
	Utterances []agent.Utterance `yaml:"utterances"`
}

func writeTranscript(path string, s dialogue.Session, history []agent.Utterance) error {
	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("unable to create transcript: %w", err)
	}
	defer f.Close() //nolint:errcheck

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(transcriptFile{
		Topic:      s.Topic,
		Mode:       s.TurnMode,
		Turns:      s.TurnCount,
		Written:    time.Now(),
		Utterances: history,
	}); err != nil {
		return fmt.Errorf("unable to write transcript: %w", err)
	}
	return enc.Close() //nolint:wrapcheck
}
