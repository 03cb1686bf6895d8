package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"athand/internal/prayer"
	logx "athand/pkg/logx"
)

// CommandConfig configures the audio player sink.
type CommandConfig struct {
	Enabled   bool
	Player    string   // executable, e.g. "mpg123"
	Args      []string // inserted before the audio path
	AudioDir  string
	Athan     string // default "athan.mp3"
	FajrAthan string // default "fajr_athan.mp3"
	Timeout   time.Duration
}

func (c CommandConfig) withDefaults() CommandConfig {
	if strings.TrimSpace(c.Athan) == "" {
		c.Athan = "athan.mp3"
	}
	if strings.TrimSpace(c.FajrAthan) == "" {
		c.FajrAthan = "fajr_athan.mp3"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Minute
	}
	return c
}

// CommandSink plays the athan by running an external player.
type CommandSink struct {
	cfg CommandConfig
	log logx.Logger
}

func NewCommandSink(cfg CommandConfig, log logx.Logger) (*CommandSink, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.Player) == "" {
		return nil, errors.New("notify.command.player is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CommandSink{cfg: cfg, log: log}, nil
}

func (s *CommandSink) Name() string { return "command" }

// AudioFor returns the file played for p. Fajr has its own athan.
func (s *CommandSink) AudioFor(p prayer.Name) string {
	file := s.cfg.Athan
	if p == prayer.Fajr {
		file = s.cfg.FajrAthan
	}
	if s.cfg.AudioDir == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(s.cfg.AudioDir, file)
}

func (s *CommandSink) Notify(ctx context.Context, n Notification) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	audio := s.AudioFor(n.Prayer)
	args := append(append([]string(nil), s.cfg.Args...), audio)
	cmd := exec.CommandContext(ctx, s.cfg.Player, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	s.log.Info("playing athan", logx.String("prayer", string(n.Prayer)), logx.String("audio", audio))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%s: %w: %s", s.cfg.Player, err, msg)
		} else {
			err = fmt.Errorf("%s: %w", s.cfg.Player, err)
		}
		return done(s.Name(), start, err)
	}
	return done(s.Name(), start, nil)
}
