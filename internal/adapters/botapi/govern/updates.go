package govern

// updates.go — long-poll getUpdates. This call carries no chat_id of its
// own (it pulls whatever is pending for the bot as a whole), so it does not
// go through Governor.Admit — only the outgoing sends triggered by what it
// returns do.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Chat — minimal projection of Bot API's Chat object.
type Chat struct {
	ID int64 `json:"id"`
}

// IncomingMessage — minimal projection of Bot API's Message object, enough
// to decide whether and where to reply.
type IncomingMessage struct {
	MessageID int    `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Update — one entry from getUpdates. Only the message field is modeled;
// other update kinds (edited_message, callback_query, ...) are ignored by
// callers that only look at Message.
type Update struct {
	UpdateID int              `json:"update_id"`
	Message  *IncomingMessage `json:"message,omitempty"`
}

type getUpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []Update `json:"result"`
}

// GetUpdates long-polls for new updates starting at offset, waiting up to
// timeoutSeconds for at least one to arrive. Pass the previous call's last
// UpdateID+1 as offset to acknowledge and advance past delivered updates.
func (c *Client) GetUpdates(ctx context.Context, offset, timeoutSeconds int) ([]Update, error) {
	url := fmt.Sprintf("%sgetUpdates?offset=%s&timeout=%s",
		c.baseURL, strconv.Itoa(offset), strconv.Itoa(timeoutSeconds))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("govern: build getUpdates request: %w", err)
	}

	// Long-polling blocks for up to timeoutSeconds server-side; the shared
	// client's httpClientTimeout would cut that off, so this call uses its
	// own client sized to the requested poll window.
	pollClient := &http.Client{Timeout: time.Duration(timeoutSeconds+5) * time.Second}
	resp, err := pollClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("govern: getUpdates request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("govern: read getUpdates response: %w", err)
	}

	var decoded getUpdatesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("govern: decode getUpdates response: %w", err)
	}
	if !decoded.OK {
		return nil, &APIError{Code: resp.StatusCode, Description: "getUpdates returned ok=false"}
	}
	return decoded.Result, nil
}
