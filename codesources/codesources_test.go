package codesources

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/modes"
	"golang.org/x/time/rate"
)

func TestExtractCode(t *testing.T) {
	for _, c := range []struct {
		reply  string
		code   string
		blocks int
	}{
		{"```python\nx = 1\n```", "x = 1\n", 1},
		{"Here:\n```\nx = 1\ny = 2\n```\nDone.", "x = 1\ny = 2\n", 1},
		{"```starlark\nx = 1\n```\n```latex\n\\foo\n```", "x = 1\n", 1},
		{"no code", "", 0},
		{"```python\n\n```", "", 0},
		{"```python\nx = 1\n```\n```python\ny = 1\n```", "", 2},
	} {
		code, err := ExtractCode(c.reply)
		if c.code != "" {
			if err != nil {
				t.Fatalf("%q: %v", c.reply, err)
			}
			if code != c.code {
				t.Fatalf("%q: got %q", c.reply, code)
			}
			continue
		}
		var extractErr *ExtractError
		if !errors.As(err, &extractErr) {
			t.Fatalf("%q: got %v", c.reply, err)
		}
		if extractErr.Blocks != c.blocks {
			t.Fatalf("%q: got %d", c.reply, extractErr.Blocks)
		}
		if extractErr.Instructions() == "" {
			t.Fatal()
		}
	}
}

func TestFixed(t *testing.T) {
	f := &Fixed{
		Replies: []string{"foo", Fenced("x = 1")},
	}
	ctx := context.Background()
	if _, err := f.GetCode(ctx, NewPrompt("", "a")); err == nil {
		t.Fatal("should fail")
	}
	for range 2 {
		code, err := f.GetCode(ctx, NewPrompt("", "b"))
		if err != nil {
			t.Fatal(err)
		}
		if code != "x = 1\n" {
			t.Fatalf("got %q", code)
		}
	}
	if len(f.Prompts) != 3 {
		t.Fatalf("got %d", len(f.Prompts))
	}
}

func TestPrompt(t *testing.T) {
	p := NewPrompt("sys", "do it")
	q := p.With(RoleAssistant, "ok")
	if len(p) != 2 || len(q) != 3 {
		t.Fatalf("got %v %v", p, q)
	}
	if q[2].Role != RoleAssistant {
		t.Fatalf("got %v", q[2])
	}
}

func TestOpenAI(t *testing.T) {
	var got chatRequest
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("got %s", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(status)
		switch status {
		case http.StatusOK:
			io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"`+
				"```python\\nprint(1)\\n```"+`"},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`)
		default:
			io.WriteString(w, `{"error":{"message":"slow down"}}`)
		}
	}))
	defer server.Close()

	dscope.New(
		modes.ForTest(t),
		new(Module),
	).Call(func(
		source *OpenAI,
	) {
		source.Endpoint = server.URL + "/v1/"
		source.APIKey = "key"
		source.Model = "foo"
		source.Limiter = rate.NewLimiter(rate.Inf, 1)

		ctx := context.Background()
		code, err := source.GetCode(ctx, NewPrompt("sys", "write code"))
		if err != nil {
			t.Fatal(err)
		}
		if code != "print(1)\n" {
			t.Fatalf("got %q", code)
		}
		if got.Model != "foo" || len(got.Messages) != 2 || got.Messages[0].Role != RoleSystem {
			t.Fatalf("got %+v", got)
		}

		status = http.StatusTooManyRequests
		_, err = source.GetCode(ctx, NewPrompt("", "write code"))
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !errors.Is(err, ErrRetryable) {
			t.Fatalf("got %v", err)
		}
		if apiErr.Message != "slow down" {
			t.Fatalf("got %s", apiErr.Message)
		}

		status = http.StatusBadRequest
		_, err = source.GetCode(ctx, NewPrompt("", "write code"))
		if !errors.As(err, &apiErr) || errors.Is(err, ErrRetryable) {
			t.Fatalf("got %v", err)
		}
	})
}
