package device

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the DuoPlus open API endpoint.
	DefaultBaseURL = "https://openapi.duoplus.net"

	commandPath = "/api/v1/cloudPhone/command"
	devicesPath = "/devices"

	apiKeyHeader = "DuoPlus-API-Key"

	screencapCommand = "screencap -p /sdcard/screen.png && base64 /sdcard/screen.png"
)

// ErrCommandFailed is returned when the API accepts the request but the
// command does not succeed on the phone.
var ErrCommandFailed = errors.New("device command failed")

// Options configure one CloudPhone session.
type Options struct {
	BaseURL  string
	APIKey   string
	DeviceID string

	// Scroll gesture geometry, in device pixels.
	SwipeFromX, SwipeFromY int
	SwipeToX, SwipeToY     int
	SwipeMillis            int

	Timeout time.Duration
	Logger  *zap.Logger
}

// CloudPhone is a Controller backed by the DuoPlus command API. Every
// method is one POST carrying an ADB shell command for the phone.
type CloudPhone struct {
	opts Options
	http *http.Client
	log  *zap.Logger
}

func NewCloudPhone(opts Options) *CloudPhone {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.SwipeFromX == 0 && opts.SwipeFromY == 0 && opts.SwipeToX == 0 && opts.SwipeToY == 0 {
		opts.SwipeFromX, opts.SwipeFromY = 540, 1500
		opts.SwipeToX, opts.SwipeToY = 540, 500
	}
	if opts.SwipeMillis <= 0 {
		opts.SwipeMillis = 500
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudPhone{
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout},
		log:  logger.With(zap.String("component", "device"), zap.String("device_id", opts.DeviceID)),
	}
}

type commandRequest struct {
	ImageID string `json:"image_id"`
	Command string `json:"command"`
}

type commandResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type screenshotData struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
}

func (c *CloudPhone) exec(ctx context.Context, command string) (json.RawMessage, error) {
	body, err := json.Marshal(commandRequest{ImageID: c.opts.DeviceID, Command: command})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+commandPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.opts.APIKey)

	c.log.Debug("command", zap.String("shell", command))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}

	var cr commandResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("%w: bad response: %v", ErrCommandFailed, err)
	}
	if cr.Code != 200 {
		return nil, fmt.Errorf("%w: code %d %s", ErrCommandFailed, cr.Code, cr.Msg)
	}
	return cr.Data, nil
}

func (c *CloudPhone) OpenURL(ctx context.Context, url string) error {
	cmd := fmt.Sprintf(`am start -a android.intent.action.VIEW -d "%s" -p com.android.chrome`, url)
	_, err := c.exec(ctx, cmd)
	return err
}

func (c *CloudPhone) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := c.exec(ctx, screencapCommand)
	if err != nil {
		return nil, err
	}

	var sd screenshotData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("%w: bad screenshot payload: %v", ErrCommandFailed, err)
	}
	if !sd.Success {
		return nil, fmt.Errorf("%w: screencap did not succeed", ErrCommandFailed)
	}

	// The base64 body comes back with the newlines the base64 tool
	// printed on the phone.
	b64 := strings.TrimSpace(strings.ReplaceAll(sd.Content, "\n", ""))
	png, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable screenshot: %v", ErrCommandFailed, err)
	}
	return png, nil
}

func (c *CloudPhone) Tap(ctx context.Context, x, y int) error {
	_, err := c.exec(ctx, fmt.Sprintf("input tap %d %d", x, y))
	return err
}

func (c *CloudPhone) SwipeDown(ctx context.Context) error {
	return c.Swipe(ctx, c.opts.SwipeFromX, c.opts.SwipeFromY, c.opts.SwipeToX, c.opts.SwipeToY, c.opts.SwipeMillis)
}

func (c *CloudPhone) Swipe(ctx context.Context, fromX, fromY, toX, toY, millis int) error {
	_, err := c.exec(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", fromX, fromY, toX, toY, millis))
	return err
}

func (c *CloudPhone) InputText(ctx context.Context, text string) error {
	// ADBKeyboard wants the message single quoted, so embedded single
	// quotes take the '\'' shell form.
	escaped := strings.ReplaceAll(text, "'", `'\''`)
	_, err := c.exec(ctx, fmt.Sprintf("am broadcast -a ADB_INPUT_TEXT --es msg '%s'", escaped))
	return err
}

// ListDevices returns the account's cloud phones as raw JSON for the
// devices command to print.
func ListDevices(ctx context.Context, baseURL, apiKey string, timeout time.Duration) (json.RawMessage, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+devicesPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, apiKey)

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list devices: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.RawMessage(raw), nil
}
