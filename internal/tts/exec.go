package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	shellwords "github.com/mattn/go-shellwords"
)

// ExecSpeaker synthesizes speech by running a local synthesis command
// per utterance. The command string may carry {text}, {voice}, {rate},
// {pitch} and {volume} placeholders, substituted per call, for example:
//
//	espeak-ng -v {voice} -s {rate} -p {pitch} -a {volume} {text}
type ExecSpeaker struct {
	args   []string
	volume float64
	rate   float64
	pitch  float64

	mu      sync.Mutex
	current *exec.Cmd
}

// NewExecSpeaker parses the command template. volume, rate and pitch of
// zero fall back to 1.0.
func NewExecSpeaker(command string, volume, rate, pitch float64) (*ExecSpeaker, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse speaker command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("speaker command empty")
	}
	if volume <= 0 {
		volume = 1.0
	}
	if rate <= 0 {
		rate = 1.0
	}
	if pitch <= 0 {
		pitch = 1.0
	}
	return &ExecSpeaker{args: args, volume: volume, rate: rate, pitch: pitch}, nil
}

// Speak runs the synthesis command and blocks until audio finishes,
// the context is cancelled, or Stop kills the process.
func (s *ExecSpeaker) Speak(ctx context.Context, text, voice string) error {
	args := make([]string, len(s.args))
	replacer := strings.NewReplacer(
		"{text}", text,
		"{voice}", voice,
		"{volume}", fmt.Sprintf("%g", s.volume),
		"{rate}", fmt.Sprintf("%g", s.rate),
		"{pitch}", fmt.Sprintf("%g", s.pitch),
	)
	for i, arg := range s.args {
		args[i] = replacer.Replace(arg)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	s.mu.Lock()
	s.current = cmd
	s.mu.Unlock()

	err := cmd.Run()

	s.mu.Lock()
	if s.current == cmd {
		s.current = nil
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("speaker command: %w", err)
	}
	return nil
}

// Stop kills the utterance in flight, if any. Kill failures are
// swallowed; the Speak call returns the command error instead.
func (s *ExecSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.Process != nil {
		_ = s.current.Process.Kill()
	}
}

// ExecPlayer plays audio bytes by piping them into a player command's
// stdin, for example: ffplay -autoexit -nodisp -loglevel quiet -
type ExecPlayer struct {
	args []string
}

func NewExecPlayer(command string) (*ExecPlayer, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("player command empty")
	}
	return &ExecPlayer{args: args}, nil
}

// Play blocks until playback ends. Cancelling the context kills the
// player, discarding the rest of the audio.
func (p *ExecPlayer) Play(ctx context.Context, audio []byte) error {
	cmd := exec.CommandContext(ctx, p.args[0], p.args[1:]...)
	cmd.Stdin = bytes.NewReader(audio)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("player command: %w", err)
	}
	return nil
}
