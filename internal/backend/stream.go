package backend

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jo-hoe/mebloggy/internal/observable"

	"github.com/labstack/echo/v4"
)

const (
	EventShowcases   = "showcases"
	EventFeatured    = "featured"
	EventAvatar      = "avatar"
	EventAvatarError = "avatarError"
	EventSelection   = "selectedShowcaseIds"

	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// Event is a single update written to event stream clients
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// eventsHandler streams every broadcast channel of the core service over a
// websocket. Each channel first sends its current value.
func (s *APIService) eventsHandler(ctx echo.Context) error {
	connection, err := s.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already answered the request
		slog.Error("eventsHandler: websocket upgrade failed", "error", err)
		return nil
	}
	defer func() {
		_ = connection.Close()
	}()

	events := make(chan Event)
	done := make(chan struct{})
	defer close(done)

	unsubscribers := []func(){
		forward(s.coreService.Showcases(), EventShowcases, events, done),
		forward(s.coreService.Featured(), EventFeatured, events, done),
		forward(s.coreService.Avatar(), EventAvatar, events, done),
		forward(s.coreService.AvatarError(), EventAvatarError, events, done),
		forward(s.coreService.SelectedShowcaseIDs(), EventSelection, events, done),
	}
	defer func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
	}()

	readerDone := readUntilClosed(connection)
	slog.Info("event stream client connected", "remote", ctx.RealIP())

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event := <-events:
			_ = connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := connection.WriteJSON(event); err != nil {
				slog.Warn("event stream write failed", "error", err, "type", event.Type)
				return nil
			}
		case <-ticker.C:
			_ = connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Warn("event stream ping failed", "error", err)
				return nil
			}
		case <-readerDone:
			slog.Info("event stream client disconnected", "remote", ctx.RealIP())
			return nil
		}
	}
}

// forward relays values of source as events until done is closed or the
// subscription ends. The returned function ends the subscription.
func forward[T any](source observable.Observable[T], eventType string, events chan<- Event, done <-chan struct{}) func() {
	subscription := source.Subscribe(1)
	go func() {
		for value := range subscription.C() {
			select {
			case events <- Event{Type: eventType, Payload: value}:
			case <-done:
				return
			}
		}
	}()
	return subscription.Unsubscribe
}

// readUntilClosed keeps the read deadline fresh on every pong and reports
// when the client goes away. Clients are not expected to send data.
func readUntilClosed(connection *websocket.Conn) <-chan struct{} {
	readerDone := make(chan struct{})

	connection.SetReadLimit(512)
	_ = connection.SetReadDeadline(time.Now().Add(pongWait))
	connection.SetPongHandler(func(string) error {
		return connection.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(readerDone)
		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("event stream read ended", "error", err)
				}
				return
			}
		}
	}()
	return readerDone
}
