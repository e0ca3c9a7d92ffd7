package ai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"invoice-agent/internal/ai"
)

const textResponse = `{
	"id": "resp_1",
	"object": "response",
	"created_at": 0,
	"model": "small",
	"status": "completed",
	"output": [{
		"type": "message",
		"id": "msg_1",
		"role": "assistant",
		"status": "completed",
		"content": [{"type": "output_text", "text": "Hello!", "annotations": []}]
	}],
	"usage": {"input_tokens": 3, "output_tokens": 2, "total_tokens": 5}
}`

func TestOpenAIClient_NilLogger(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		want        string
		clientError bool
	}{
		{"text reply", http.StatusOK, textResponse, "Hello!", false},
		{"rejected request", http.StatusBadRequest, `{"error":{"message":"bad input","type":"invalid_request_error"}}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := ai.NewOpenAIClient(ai.OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/"}, nil)
			resp, err := c.Respond(context.Background(), ai.Request{Model: "small", Instructions: "be brief"})
			if tt.clientError {
				if err == nil || !ai.IsClientError(err) {
					t.Fatalf("err = %v, want a client error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Respond: %v", err)
			}
			if resp.Text != tt.want || resp.ToolCall != nil {
				t.Errorf("response = %+v, want text %q", resp, tt.want)
			}
		})
	}
}
