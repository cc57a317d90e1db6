package display

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/zabari/chatspeaker/internal/message"
)

// Printer writes a colorized live feed of chat events to the console.
type Printer struct {
	out           io.Writer
	twitchColor   *color.Color
	youtubeColor  *color.Color
	kickColor     *color.Color
	tiktokColor   *color.Color
	usernameColor *color.Color
	dimColor      *color.Color
}

func NewPrinter() *Printer {
	return &Printer{
		out:           os.Stdout,
		twitchColor:   color.New(color.FgMagenta, color.Bold),
		youtubeColor:  color.New(color.FgRed, color.Bold),
		kickColor:     color.New(color.FgGreen, color.Bold),
		tiktokColor:   color.New(color.FgCyan, color.Bold),
		usernameColor: color.New(color.FgYellow),
		dimColor:      color.New(color.FgHiBlack),
	}
}

func (p *Printer) tag(platform message.Platform) string {
	switch platform {
	case message.Twitch:
		return p.twitchColor.Sprint("[TTV]")
	case message.YouTube:
		return p.youtubeColor.Sprint("[YT ]")
	case message.Kick:
		return p.kickColor.Sprint("[KCK]")
	case message.TikTok:
		return p.tiktokColor.Sprint("[TIK]")
	}
	return p.dimColor.Sprint("[???]")
}

// Print writes a single event as one line:
// [TTV] 15:04:05 username: message
func (p *Printer) Print(ev message.Event) {
	fmt.Fprintf(p.out, "%s %s %s%s %s\n",
		p.tag(ev.Platform),
		p.dimColor.Sprint(ev.Timestamp.Local().Format("15:04:05")),
		p.usernameColor.Sprint(ev.Username),
		p.dimColor.Sprint(":"),
		ev.Message,
	)
}

// Run consumes events until the channel is closed.
func (p *Printer) Run(events <-chan message.Event) {
	for ev := range events {
		p.Print(ev)
	}
}
