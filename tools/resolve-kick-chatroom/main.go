// Command resolve-kick-chatroom looks up the chatroom ID for a Kick
// channel slug. Pinning the ID in config skips the API lookup at
// startup, which matters when Kick's anti-bot protection is moody.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/zabari/chatspeaker/internal/kick"
)

const apiBase = "https://kick.com/api/v2"

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: resolve-kick-chatroom <channel>")
		fmt.Fprintln(os.Stderr, "\nExample:\n  resolve-kick-chatroom xqc")
		os.Exit(1)
	}
	channel := os.Args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	chatroomID, err := kick.ResolveChatroomID(ctx, client, apiBase, channel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve %s: %v\n", channel, err)
		os.Exit(1)
	}

	fmt.Printf("%s: chatroom %d\n\n", channel, chatroomID)
	fmt.Println("Add this to your config.yaml:")
	fmt.Println("---")
	fmt.Println("platforms:")
	fmt.Println("  kick:")
	fmt.Println("    enabled: true")
	fmt.Printf("    channel: %s\n", channel)
	fmt.Printf("    chatroom_id: %d\n", chatroomID)
}
