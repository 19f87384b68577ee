package notifier

import (
	"fmt"
	"net/http"
	"net/url"
)

// Telegram sends notifications to a Telegram chat.
type Telegram struct {
	Token  string
	ChatID string
}

// NewTelegram constructs a Telegram notifier.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{Token: token, ChatID: chatID}
}

func (t *Telegram) Send(message string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.Token)
	resp, err := http.PostForm(apiURL, url.Values{
		"chat_id": {t.ChatID},
		"text":    {message},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

func (t *Telegram) SendWithRetry(message string) error {
	// Plain send; wrap with WithRetry for a retry policy.
	return t.Send(message)
}
