package webdriver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeValue(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"value": value})
}

func TestClient_NewSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/session", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		caps := body["capabilities"].(map[string]any)["alwaysMatch"].(map[string]any)
		assert.Equal(t, "chrome", caps["browserName"])

		writeValue(w, http.StatusOK, map[string]any{
			"sessionId":    "abc123",
			"capabilities": map[string]any{"browserName": "chrome"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	sess, err := client.NewSession(context.Background(), map[string]any{"browserName": "chrome"})

	require.NoError(t, err)
	assert.Equal(t, "abc123", sess.ID)
	assert.Equal(t, "chrome", sess.Capabilities.Get("browserName").String())
}

func TestClient_NewSession_NotCreated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeValue(w, http.StatusInternalServerError, map[string]any{
			"error":   "session not created",
			"message": "no matching capabilities",
		})
	}))
	defer server.Close()

	_, err := NewClient(server.URL).NewSession(context.Background(), map[string]any{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionNotCreated))

	var wdErr *Error
	require.True(t, errors.As(err, &wdErr))
	assert.Equal(t, http.StatusInternalServerError, wdErr.Status)
	assert.Contains(t, wdErr.Error(), "no matching capabilities")
}

func TestSession_FindElement(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/session/s1/element", r.URL.Path)
			writeValue(w, http.StatusOK, map[string]any{elementKey: "el-1"})
		}))
		defer server.Close()

		sess := &Session{ID: "s1", client: NewClient(server.URL)}
		el, err := sess.FindElement(context.Background(), ByCSS("#login"))

		require.NoError(t, err)
		assert.Equal(t, "el-1", el.ID)
	})

	t.Run("no such element", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeValue(w, http.StatusNotFound, map[string]any{
				"error":   "no such element",
				"message": "Unable to locate element",
			})
		}))
		defer server.Close()

		sess := &Session{ID: "s1", client: NewClient(server.URL)}
		_, err := sess.FindElement(context.Background(), ByCSS("#missing"))

		assert.True(t, errors.Is(err, ErrNoSuchElement))
		assert.False(t, errors.Is(err, ErrStaleElement))
	})
}

func TestSession_FindElements_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeValue(w, http.StatusOK, []any{})
	}))
	defer server.Close()

	sess := &Session{ID: "s1", client: NewClient(server.URL)}
	els, err := sess.FindElements(context.Background(), ByXPath("//tr"))

	require.NoError(t, err)
	assert.Empty(t, els)
}

func TestSession_Screenshot(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/s1/screenshot", r.URL.Path)
		writeValue(w, http.StatusOK, base64.StdEncoding.EncodeToString(png))
	}))
	defer server.Close()

	sess := &Session{ID: "s1", client: NewClient(server.URL)}
	data, err := sess.Screenshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestSession_SetTimeouts(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeValue(w, http.StatusOK, nil)
	}))
	defer server.Close()

	sess := &Session{ID: "s1", client: NewClient(server.URL)}
	err := sess.SetTimeouts(context.Background(), 10*time.Second, 30*time.Second)

	require.NoError(t, err)
	assert.Equal(t, float64(10000), got["implicit"])
	assert.Equal(t, float64(30000), got["pageLoad"])
}

func TestElement_Commands(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/s1/element/e1/displayed":
			writeValue(w, http.StatusOK, true)
		case "/session/s1/element/e1/text":
			writeValue(w, http.StatusOK, "Balance: $1,000.00")
		case "/session/s1/element/e1/click":
			writeValue(w, http.StatusOK, nil)
		default:
			writeValue(w, http.StatusNotFound, map[string]any{"error": "unknown command"})
		}
	}))
	defer server.Close()

	el := &Element{ID: "e1", session: &Session{ID: "s1", client: NewClient(server.URL)}}
	ctx := context.Background()

	shown, err := el.IsDisplayed(ctx)
	require.NoError(t, err)
	assert.True(t, shown)

	text, err := el.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Balance: $1,000.00", text)

	require.NoError(t, el.Click(ctx))

	_, err = el.IsEnabled(ctx)
	require.Error(t, err)
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeValue(w, http.StatusOK, map[string]any{"ready": true})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithTimeout(50*time.Millisecond))
	_, _, err := client.Status(context.Background())

	assert.Error(t, err)
}
