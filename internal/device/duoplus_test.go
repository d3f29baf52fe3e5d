package device

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commandServer records every shell command received and answers with a
// fixed body.
func commandServer(t *testing.T, respond string) (*httptest.Server, *[]string) {
	t.Helper()
	var commands []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/cloudPhone/command", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("DuoPlus-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var cr commandRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cr))
		assert.Equal(t, "dev-1", cr.ImageID)
		commands = append(commands, cr.Command)

		w.Write([]byte(respond))
	}))
	t.Cleanup(srv.Close)
	return srv, &commands
}

func testPhone(srv *httptest.Server) *CloudPhone {
	return NewCloudPhone(Options{
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		DeviceID: "dev-1",
	})
}

func TestOpenURLCommand(t *testing.T) {
	srv, commands := commandServer(t, `{"code":200,"msg":"ok","data":{}}`)

	err := testPhone(srv).OpenURL(context.Background(), "https://x.com/user/status/1")
	require.NoError(t, err)

	require.Len(t, *commands, 1)
	assert.Equal(t,
		`am start -a android.intent.action.VIEW -d "https://x.com/user/status/1" -p com.android.chrome`,
		(*commands)[0])
}

func TestTapCommand(t *testing.T) {
	srv, commands := commandServer(t, `{"code":200,"msg":"ok","data":{}}`)

	require.NoError(t, testPhone(srv).Tap(context.Background(), 980, 350))
	assert.Equal(t, []string{"input tap 980 350"}, *commands)
}

func TestSwipeDownUsesGeometry(t *testing.T) {
	srv, commands := commandServer(t, `{"code":200,"msg":"ok","data":{}}`)

	phone := NewCloudPhone(Options{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		DeviceID:   "dev-1",
		SwipeFromX: 360, SwipeFromY: 1000,
		SwipeToX: 360, SwipeToY: 333,
		SwipeMillis: 500,
	})
	require.NoError(t, phone.SwipeDown(context.Background()))
	assert.Equal(t, []string{"input swipe 360 1000 360 333 500"}, *commands)
}

func TestSwipeDownDefaultGeometry(t *testing.T) {
	srv, commands := commandServer(t, `{"code":200,"msg":"ok","data":{}}`)

	require.NoError(t, testPhone(srv).SwipeDown(context.Background()))
	assert.Equal(t, []string{"input swipe 540 1500 540 500 500"}, *commands)
}

func TestInputTextEscapesSingleQuotes(t *testing.T) {
	srv, commands := commandServer(t, `{"code":200,"msg":"ok","data":{}}`)

	require.NoError(t, testPhone(srv).InputText(context.Background(), "it's great"))
	require.Len(t, *commands, 1)
	assert.Equal(t, `am broadcast -a ADB_INPUT_TEXT --es msg 'it'\''s great'`, (*commands)[0])
}

func TestScreenshotDecodesBase64(t *testing.T) {
	payload := []byte("pretend this is a png")
	b64 := base64.StdEncoding.EncodeToString(payload)
	// screencap output arrives with the newlines base64 printed
	wrapped := b64[:8] + "\n" + b64[8:] + "\n"

	body, err := json.Marshal(map[string]any{
		"code": 200,
		"msg":  "ok",
		"data": map[string]any{"success": true, "content": wrapped},
	})
	require.NoError(t, err)

	srv, commands := commandServer(t, string(body))

	png, err := testPhone(srv).Screenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload, png)
	assert.Equal(t, []string{screencapCommand}, *commands)
}

func TestScreenshotReportsFailure(t *testing.T) {
	srv, _ := commandServer(t, `{"code":200,"msg":"ok","data":{"success":false}}`)

	_, err := testPhone(srv).Screenshot(context.Background())
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestCommandErrorCode(t *testing.T) {
	srv, _ := commandServer(t, `{"code":401,"msg":"invalid key","data":null}`)

	err := testPhone(srv).Tap(context.Background(), 1, 1)
	require.ErrorIs(t, err, ErrCommandFailed)
	assert.ErrorContains(t, err, "401")
	assert.ErrorContains(t, err, "invalid key")
}

func TestListDevices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/devices", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("DuoPlus-API-Key"))
		fmt.Fprint(w, `[{"id":"dev-1","status":"online"}]`)
	}))
	defer srv.Close()

	raw, err := ListDevices(context.Background(), srv.URL, "test-key", 0)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"dev-1","status":"online"}]`, string(raw))
}

func TestListDevicesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := ListDevices(context.Background(), srv.URL, "bad", 0)
	assert.ErrorContains(t, err, "status 403")
}
