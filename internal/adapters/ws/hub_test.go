package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/FelixJx/fupan-game/internal/adapters/ws"
)

// dialHub spins up a test server whose handler subscribes every connection
// to sessionID, and returns a connected client.
func dialHub(hub *ws.Hub, sessionID string) (*websocket.Conn, *httptest.Server, error) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Subscribe(r.Context(), sessionID, conn)
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		return nil, nil, err
	}
	return conn, srv, nil
}

func waitForSessions(hub *ws.Hub, want int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if hub.SessionCount() == want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub.SessionCount() == want
}

func readMessage(conn *websocket.Conn) (ws.Message, error) {
	var msg ws.Message
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	err := conn.ReadJSON(&msg)
	return msg, err
}

func TestHubPublish(t *testing.T) {
	Convey("Given a hub with one subscriber", t, func() {
		hub := ws.NewHub()
		conn, srv, err := dialHub(hub, "session-1")
		So(err, ShouldBeNil)
		defer srv.Close()
		defer func() { _ = conn.Close() }()
		So(waitForSessions(hub, 1, time.Second), ShouldBeTrue)

		Convey("When publishing to that session", func() {
			hub.Publish("session-1", ws.MessageAchievement, map[string]int{"step": 1})

			Convey("Then the subscriber receives the typed message", func() {
				msg, err := readMessage(conn)
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, ws.MessageAchievement)
				So(msg.SessionID, ShouldEqual, "session-1")
				So(msg.Timestamp, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When publishing to a different session", func() {
			hub.Publish("session-2", ws.MessageScoreCalculated, nil)
			hub.Publish("session-1", ws.MessageScoreCalculated, nil)

			Convey("Then only the subscriber's own session's message arrives", func() {
				msg, err := readMessage(conn)
				So(err, ShouldBeNil)
				So(msg.SessionID, ShouldEqual, "session-1")
			})
		})

		Convey("When publishing to a session nobody watches", func() {
			Convey("Then the publish is a silent no-op", func() {
				So(func() { hub.Publish("ghost", ws.MessageMarketUpdate, nil) }, ShouldNotPanic)
			})
		})

		Convey("When the subscriber disconnects", func() {
			_ = conn.Close()

			Convey("Then the hub forgets the session", func() {
				So(waitForSessions(hub, 0, time.Second), ShouldBeTrue)
			})
		})
	})
}

func TestHubBroadcast(t *testing.T) {
	Convey("Given a hub with subscribers on two sessions", t, func() {
		hub := ws.NewHub()
		conn1, srv1, err := dialHub(hub, "session-1")
		So(err, ShouldBeNil)
		defer srv1.Close()
		defer func() { _ = conn1.Close() }()
		conn2, srv2, err := dialHub(hub, "session-2")
		So(err, ShouldBeNil)
		defer srv2.Close()
		defer func() { _ = conn2.Close() }()
		So(waitForSessions(hub, 2, time.Second), ShouldBeTrue)

		Convey("When broadcasting a market update", func() {
			hub.Broadcast(ws.MessageMarketUpdate, map[string]string{"volume": "1.2万亿"})

			Convey("Then every subscriber receives it scoped to its session", func() {
				msg1, err := readMessage(conn1)
				So(err, ShouldBeNil)
				So(msg1.Type, ShouldEqual, ws.MessageMarketUpdate)
				So(msg1.SessionID, ShouldEqual, "session-1")

				msg2, err := readMessage(conn2)
				So(err, ShouldBeNil)
				So(msg2.SessionID, ShouldEqual, "session-2")
			})
		})
	})
}

func TestHubSubscribeContext(t *testing.T) {
	Convey("Given a subscription bound to a cancelable context", t, func() {
		hub := ws.NewHub()
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		ctx, cancel := context.WithCancel(context.Background())

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			hub.Subscribe(ctx, "session-ctx", conn)
		}))
		defer srv.Close()

		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer func() { _ = conn.Close() }()
		So(waitForSessions(hub, 1, time.Second), ShouldBeTrue)

		Convey("When the context is canceled", func() {
			cancel()

			Convey("Then the subscription winds down", func() {
				So(waitForSessions(hub, 0, time.Second), ShouldBeTrue)
			})
		})
	})
}
