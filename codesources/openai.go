package codesources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/nets"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// OpenAI gets code from an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	Endpoint    string
	Model       string
	APIKey      string
	Temperature float64
	Client      nets.HTTPClient
	Limiter     *rate.Limiter
	Logger      logs.Logger
}

var _ CodeSource = new(OpenAI)

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// APIError is a non-success response of the endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (a *APIError) Error() string {
	return fmt.Sprintf("chat completion: status %d: %s", a.StatusCode, a.Message)
}

func (o *OpenAI) GetCode(ctx context.Context, prompt Prompt) (string, error) {
	reply, err := o.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return ExtractCode(reply)
}

// Complete returns the text of the first choice.
func (o *OpenAI) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if o.Limiter != nil {
		if err := o.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       o.Model,
		Messages:    prompt,
		Temperature: o.Temperature,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(o.Endpoint, "/")+"/chat/completions",
		bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if o.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	if o.Logger != nil {
		o.Logger.InfoContext(ctx, "requesting code",
			"model", o.Model,
			"messages", len(prompt),
		)
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Join(fmt.Errorf("chat completion: %w", err), ErrRetryable)
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Join(fmt.Errorf("chat completion: %w", err), ErrRetryable)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    gjson.GetBytes(content, "error.message").String(),
		}
		if apiErr.Message == "" {
			apiErr.Message = string(content)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", errors.Join(apiErr, ErrRetryable)
		}
		return "", apiErr
	}

	if !gjson.ValidBytes(content) {
		return "", fmt.Errorf("chat completion: bad response: %s", content)
	}
	choice := gjson.GetBytes(content, "choices.0.message.content")
	if !choice.Exists() {
		return "", fmt.Errorf("chat completion: no choice in response: %s", content)
	}
	if o.Logger != nil {
		o.Logger.InfoContext(ctx, "got reply",
			"model", o.Model,
			"finish_reason", gjson.GetBytes(content, "choices.0.finish_reason").String(),
			"total_tokens", gjson.GetBytes(content, "usage.total_tokens").Int(),
		)
	}
	return choice.String(), nil
}
