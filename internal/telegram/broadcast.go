package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"coinbazar/internal/app"
	"coinbazar/internal/logger"
)

const (
	MaxMessageLen = 4096
	MaxCaptionLen = 1024
	MaxButtonLen  = 64
)

type LinkButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Broadcast is one notification sent to every known chat.
type Broadcast struct {
	Message  string       `json:"message"`
	ImageURL string       `json:"imageUrl"`
	Buttons  []LinkButton `json:"buttons"`
}

type BroadcastResult struct {
	Total        int
	Successful   int
	Failed       int
	Errors       []string
	InvalidToken bool
}

// linkButtons drops buttons without text or url and trims labels.
func linkButtons(buttons []LinkButton) []InlineButton {
	out := make([]InlineButton, 0, len(buttons))
	for _, b := range buttons {
		if b.Text == "" || b.URL == "" {
			continue
		}
		out = append(out, InlineButton{Text: app.Truncate(b.Text, MaxButtonLen), URL: b.URL})
	}
	return out
}

// Broadcast sends msg to chatIDs one by one, pausing delay after each
// delivery. It stops at the first rejected token.
func (a *BotAPI) Broadcast(ctx context.Context, token string, chatIDs []int64, msg Broadcast, delay time.Duration) BroadcastResult {
	res := BroadcastResult{Total: len(chatIDs), Errors: []string{}}
	buttons := linkButtons(msg.Buttons)

	for _, chatID := range chatIDs {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, ctx.Err().Error())
			break
		}

		var err error
		if msg.ImageURL != "" {
			err = a.SendPhoto(ctx, token, chatID, msg.ImageURL, app.Truncate(msg.Message, MaxCaptionLen), buttons)
		} else {
			err = a.SendMessage(ctx, token, chatID, app.Truncate(msg.Message, MaxMessageLen), buttons)
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("User %d: %v", chatID, err))
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
				res.InvalidToken = true
				break
			}
			continue
		}

		res.Successful++
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
		}
	}

	logger.Infof("broadcast: %d sent, %d failed of %d", res.Successful, res.Failed, res.Total)
	return res
}
