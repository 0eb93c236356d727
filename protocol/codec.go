package protocol

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Marshal encodes a chat event frame.
func Marshal(msgType MessageType, content string) ([]byte, error) {
	data, err := sonic.Marshal(ChatEvent{Type: msgType, Content: content})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %q: %w", msgType, err)
	}
	return data, nil
}

// UnmarshalChatRequest decodes the frame that opens a turn. Text is trimmed.
func UnmarshalChatRequest(data []byte) (ChatRequest, error) {
	var req ChatRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		return ChatRequest{}, fmt.Errorf("protocol: unmarshal chat request: %w", err)
	}
	req.Text = strings.TrimSpace(req.Text)
	return req, nil
}

// UnmarshalPayload decodes a raw JSON payload into a typed struct.
func UnmarshalPayload[T any](raw []byte) (T, error) {
	var v T
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("protocol: unmarshal payload: %w", err)
	}
	return v, nil
}
