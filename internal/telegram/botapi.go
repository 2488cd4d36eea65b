package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coinbazar/internal/app"

	"github.com/go-resty/resty/v2"
)

const DefaultAPIURL = "https://api.telegram.org"

// APIError is a failed Bot API call, carrying Telegram's error_code.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// BotAPI calls the Bot HTTP API with a caller supplied token. The dashboard
// may broadcast with a token other than the one the bot runtime polls with.
type BotAPI struct {
	client  *resty.Client
	baseURL string
}

func NewBotAPI(baseURL string) *BotAPI {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	client := resty.New().
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json")
	return &BotAPI{
		client:  client,
		baseURL: app.RemoveTrailingSlash(baseURL),
	}
}

func (a *BotAPI) call(ctx context.Context, token string, method string, body interface{}, timeout time.Duration) (json.RawMessage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("%s/bot%s/%s", a.baseURL, token, method))
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, app.StripURL(err))
	}

	var out apiResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &APIError{Code: resp.StatusCode(), Description: resp.Status()}
	}
	if !out.Ok {
		code := out.ErrorCode
		if code == 0 {
			code = resp.StatusCode()
		}
		return nil, &APIError{Code: code, Description: out.Description}
	}
	return out.Result, nil
}

// GetMe returns the bot's own user object, validating token.
func (a *BotAPI) GetMe(ctx context.Context, token string) (map[string]interface{}, error) {
	raw, err := a.call(ctx, token, "getMe", map[string]interface{}{}, 10*time.Second)
	if err != nil {
		return nil, err
	}
	info := map[string]interface{}{}
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	return info, nil
}

// GetChatMember returns the membership status of userID in chatID.
func (a *BotAPI) GetChatMember(ctx context.Context, token string, chatID string, userID string) (string, error) {
	raw, err := a.call(ctx, token, "getChatMember", map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	}, 15*time.Second)
	if err != nil {
		return "", err
	}
	var member struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &member); err != nil {
		return "", fmt.Errorf("telegram getChatMember: %w", err)
	}
	return member.Status, nil
}

type inlineKeyboard struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

func keyboard(buttons []InlineButton) *inlineKeyboard {
	if len(buttons) == 0 {
		return nil
	}
	return &inlineKeyboard{InlineKeyboard: [][]InlineButton{buttons}}
}

func (a *BotAPI) SendMessage(ctx context.Context, token string, chatID int64, text string, buttons []InlineButton) error {
	body := map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               ParseModeHTML,
		"disable_web_page_preview": true,
	}
	if kb := keyboard(buttons); kb != nil {
		body["reply_markup"] = kb
	}
	_, err := a.call(ctx, token, "sendMessage", body, 10*time.Second)
	return err
}

func (a *BotAPI) SendPhoto(ctx context.Context, token string, chatID int64, photo string, caption string, buttons []InlineButton) error {
	body := map[string]interface{}{
		"chat_id":    chatID,
		"photo":      photo,
		"caption":    caption,
		"parse_mode": ParseModeHTML,
	}
	if kb := keyboard(buttons); kb != nil {
		body["reply_markup"] = kb
	}
	_, err := a.call(ctx, token, "sendPhoto", body, 10*time.Second)
	return err
}
