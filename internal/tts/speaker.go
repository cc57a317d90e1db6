package tts

import "context"

// LocalSpeaker synthesizes speech on the local machine. Speak blocks
// until audio finishes or fails; Stop aborts any utterance in flight
// and is safe to call at any time.
type LocalSpeaker interface {
	Speak(ctx context.Context, text, voice string) error
	Stop()
}

// RemoteSpeaker synthesizes speech through a network service. The
// service has no stop primitive; cancelling the context discards the
// audio on the caller's side instead.
type RemoteSpeaker interface {
	Speak(ctx context.Context, text string) error
}

// Player plays synthesized audio bytes, blocking until playback ends.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}
