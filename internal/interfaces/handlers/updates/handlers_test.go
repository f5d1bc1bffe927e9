package updates

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"csx-backend/internal/infrastructure/notify"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startStream(t *testing.T, hub *notify.Hub) string {
	t.Helper()
	h := &Handlers{Broker: hub, Heartbeat: 50 * time.Millisecond}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/updates/stream", h.Stream)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })
	return "http://" + ln.Addr().String() + "/updates/stream"
}

// nextFrame reads lines up to the blank line that ends an SSE frame.
func nextFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			return b.String()
		}
		b.WriteString(line)
	}
}

func open(t *testing.T, url string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	r := bufio.NewReader(resp.Body)
	require.Equal(t, ": connected\n", nextFrame(t, r))
	return r
}

// skipPings returns the first frame that is not a heartbeat.
func skipPings(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		f := nextFrame(t, r)
		if f != ": ping\n" {
			return f
		}
	}
}

func TestStream_DeliversEvents(t *testing.T) {
	hub := notify.NewHub()
	r := open(t, startStream(t, hub))

	hub.Publish(context.Background(), notify.Event{Type: notify.EventScoreUpdated, CompanyID: "c1", Data: map[string]interface{}{"score": 72.5}})

	frame := skipPings(t, r)
	assert.True(t, strings.HasPrefix(frame, "event: score_updated\ndata: "), frame)
	assert.Contains(t, frame, `"companyId":"c1"`)
	assert.Contains(t, frame, `"score":72.5`)
}

func TestStream_FiltersByCompany(t *testing.T) {
	hub := notify.NewHub()
	r := open(t, startStream(t, hub)+"?companyId=c2")

	hub.Publish(context.Background(), notify.Event{Type: notify.EventScoreUpdated, CompanyID: "c1"})
	hub.Publish(context.Background(), notify.Event{Type: notify.EventCertificateIssued, CompanyID: "c2"})

	frame := skipPings(t, r)
	assert.True(t, strings.HasPrefix(frame, "event: certificate_issued\n"), frame)
}

func TestStream_Heartbeat(t *testing.T) {
	hub := notify.NewHub()
	r := open(t, startStream(t, hub))
	assert.Equal(t, ": ping\n", nextFrame(t, r))
}
