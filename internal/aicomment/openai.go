package aicomment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com"
	// DefaultModel is the vision-capable model the prompt was tuned on.
	DefaultModel = "gpt-4o"

	completionsPath = "/v1/chat/completions"
	maxTokens       = 200
)

// promptTemplate is the reply-writing prompt. The rules cap the reply at
// 50 characters, require a concrete reference to the post, allow one
// emoji, and forbid sales tone; output is the comment text only.
const promptTemplate = `この画像はX（Twitter）の投稿のスクリーンショットです。

【タスク】
1. 投稿の内容を読み取ってください
2. 以下のペルソナとして、この投稿に対する自然なコメント（リプライ）を生成してください

【ペルソナ】
%s

【コメントのルール】
- 50文字以内の短いコメント
- 投稿内容に具体的に言及する
- フレンドリーで前向きなトーン
- 絵文字は1つまで使用可
- 質問を入れると会話が広がりやすい
- 宣伝や営業っぽくならないこと
- 日本語で書くこと

【出力形式】
コメント文のみを出力してください。説明や前置きは不要です。
`

// Options configure one OpenAI generator.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// OpenAI is a Generator backed by the chat completions API with an
// attached image.
type OpenAI struct {
	opts Options
	http *http.Client
	log  *zap.Logger
}

func NewOpenAI(opts Options) *OpenAI {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
		log:  logger.With(zap.String("component", "aicomment"), zap.String("model", opts.Model)),
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []messagePart `json:"content"`
}

type messagePart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate asks the model for one reply to the pictured post. The model
// sometimes wraps its answer in quotes; those are stripped before the
// length and emptiness checks.
func (o *OpenAI) Generate(ctx context.Context, framePNG []byte, persona string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.opts.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []messagePart{
				{Type: "text", Text: fmt.Sprintf(promptTemplate, persona)},
				{Type: "image_url", ImageURL: &imageURL{
					URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(framePNG),
					Detail: "high",
				}},
			},
		}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.opts.BaseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.opts.APIKey)

	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate comment: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("generate comment: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("generate comment: bad response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("generate comment: %s: %s", cr.Error.Type, cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", ErrNoComment
	}

	comment := strings.TrimSpace(cr.Choices[0].Message.Content)
	comment = strings.Trim(comment, `"'`)
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return "", ErrNoComment
	}

	o.log.Debug("comment generated", zap.Int("length", len([]rune(comment))))
	return comment, nil
}
