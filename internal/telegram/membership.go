package telegram

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var numericChannel = regexp.MustCompile(`^\d+$`)

var memberStatuses = map[string]bool{
	"member":        true,
	"administrator": true,
	"creator":       true,
	"restricted":    true,
}

// chatIDCandidates lists the forms a channel reference is tried in.
func chatIDCandidates(channel string) []string {
	clean := strings.TrimSpace(strings.Replace(channel, "@", "", 1))
	ids := []string{"@" + clean, clean}
	if numericChannel.MatchString(clean) {
		ids = append(ids, "-100"+clean)
	}
	return ids
}

// CheckMembership reports whether userID belongs to channel. Every candidate
// chat id form is tried; the last failure is returned with a readable message.
func (a *BotAPI) CheckMembership(ctx context.Context, token string, userID string, channel string) (bool, error) {
	var lastErr error
	for _, chatID := range chatIDCandidates(channel) {
		status, err := a.GetChatMember(ctx, token, chatID, userID)
		if err != nil {
			lastErr = err
			continue
		}
		return memberStatuses[status], nil
	}
	if lastErr == nil {
		return false, nil
	}
	return false, describeMembershipError(lastErr)
}

// MembershipError is a failed membership check. Error returns only the
// public message; the Bot API failure is kept for logging via Unwrap.
type MembershipError struct {
	Message string
	Err     error
}

func (e *MembershipError) Error() string { return e.Message }

func (e *MembershipError) Unwrap() error { return e.Err }

func describeMembershipError(err error) error {
	message := "Telegram API request failed"
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 400:
			message = "User not found in channel or channel does not exist"
		case 403:
			message = "Bot is not a member of the channel or does not have permissions"
		case 404:
			message = "Channel not found or bot is not an admin"
		}
	}
	return &MembershipError{Message: message, Err: err}
}
