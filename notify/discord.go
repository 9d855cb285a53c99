// Package notify delivers command replies to a Discord channel webhook.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	discordwebhook "github.com/bensch777/discord-webhook-golang"

	"github.com/dhcgn/imap-otp/command"
)

const (
	colorSuccess = 0x00FF00
	colorFailure = 0xFF0000
)

type Discord struct {
	url      string
	username string
	execute  func(url string, payload []byte) error
}

func NewDiscord(url, username string) (*Discord, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("discord webhook url is empty")
	}
	if username == "" {
		username = "imap-otp"
	}
	return &Discord{url: url, username: username, execute: discordwebhook.ExecuteWebhook}, nil
}

// Send posts reply as a single embed.
func (d *Discord) Send(reply command.Reply) error {
	payload, err := json.Marshal(d.hook(reply, time.Now()))
	if err != nil {
		return fmt.Errorf("encode webhook: %w", err)
	}
	if err := d.execute(d.url, payload); err != nil {
		return fmt.Errorf("execute webhook: %w", err)
	}
	return nil
}

func (d *Discord) hook(reply command.Reply, now time.Time) discordwebhook.Hook {
	embed := discordwebhook.Embed{
		Title:     reply.Title,
		Color:     colorFailure,
		Timestamp: now,
	}

	if reply.Success {
		embed.Color = colorSuccess
		embed.Fields = []discordwebhook.Field{
			{Name: "**Code**", Value: "**" + reply.Code + "**", Inline: false},
			{Name: "**Subject**", Value: orNA(reply.Subject), Inline: false},
			{Name: "**Date**", Value: formatDate(reply.ReceivedAt), Inline: true},
		}
	} else {
		embed.Fields = []discordwebhook.Field{
			{Name: "**Error**", Value: reply.Message, Inline: false},
		}
	}

	return discordwebhook.Hook{
		Username: d.username,
		Embeds:   []discordwebhook.Embed{embed},
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
