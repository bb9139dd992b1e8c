package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"chat-presence/auth"
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/domain/event"

	"github.com/gorilla/websocket"
)

const readLimit = int64(16 << 10)

// Gateway upgrades HTTP requests to WebSocket sessions and pumps the
// inbound command stream into the orchestrator. A connection must
// authenticate before anything else; until then it has no registry entry.
type Gateway struct {
	log          *slog.Logger
	orchestrator contract.IOrchestrator
	tokens       *auth.TokenManager
	decoder      *Decoder
	upgrader     websocket.Upgrader
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewGateway(
	log *slog.Logger,
	orchestrator contract.IOrchestrator,
	tokens *auth.TokenManager,
	readTimeout, writeTimeout time.Duration,
) *Gateway {
	return &Gateway{
		log:          log,
		orchestrator: orchestrator,
		tokens:       tokens,
		decoder:      NewDecoder(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// HandleWS is the HTTP handler for the persistent client connection.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	session := NewSession(conn, g.writeTimeout)
	conn.SetReadLimit(readLimit)

	ctx := r.Context()
	userID, ok := g.authenticate(ctx, conn, session)
	if !ok {
		_ = session.Close()
		return
	}

	connID, err := g.orchestrator.Connect(ctx, userID, session)
	if err != nil {
		g.log.Error("Registration failed", "userID", userID, "err", err)
		_ = session.Close()
		return
	}
	defer g.orchestrator.Disconnect(ctx, connID)

	g.readLoop(ctx, conn, session, userID, connID)
}

// authenticate reads the first frame, which must be an authenticate
// command carrying a valid token. Anything else gets an
// authentication_error reply and the connection stays unregistered.
func (g *Gateway) authenticate(ctx context.Context, conn *websocket.Conn, session *Session) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(g.readTimeout))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	cmd, err := g.decoder.Decode(raw)
	if err != nil {
		_ = session.Consume(ctx, event.AuthenticationError{Reason: err.Error()})
		return "", false
	}
	authCmd, ok := cmd.(*domain.AuthenticateCommand)
	if !ok {
		_ = session.Consume(ctx, event.AuthenticationError{Reason: "authenticate must be the first event"})
		return "", false
	}

	claims, err := g.tokens.Validate(authCmd.Token)
	if err != nil {
		g.log.Warn("Authentication rejected", "err", err)
		_ = session.Consume(ctx, event.AuthenticationError{Reason: "invalid or expired token"})
		return "", false
	}

	_ = session.Consume(ctx, event.Authenticated{UserID: claims.UserID})
	return claims.UserID, true
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, session *Session, userID, connID string) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(g.readTimeout))

		_, raw, err := conn.ReadMessage()
		if err != nil {
			g.log.Debug("Connection closed", "userID", userID, "err", err)
			return
		}

		cmd, err := g.decoder.Decode(raw)
		if err != nil {
			g.log.Warn("Rejected frame", "userID", userID, "err", err)
			continue
		}
		g.handle(ctx, cmd, userID, connID)
	}
}

// handle applies one decoded command. Commands that carry a userId are
// only honored for the authenticated user of this connection.
func (g *Gateway) handle(ctx context.Context, cmd domain.Command, userID, connID string) {
	var err error
	switch c := cmd.(type) {
	case *domain.AuthenticateCommand:
		g.log.Debug("Ignoring repeated authenticate", "userID", userID)
	case *domain.HeartbeatCommand:
		g.orchestrator.Heartbeat(connID)
	case *domain.AppStateCommand:
		err = g.orchestrator.AppStateChange(ctx, userID, c.State)
	case *domain.TypingStartCommand:
		if !g.actingUserMatches(c.UserID, userID, c.CommandName()) {
			return
		}
		err = g.orchestrator.TypingStart(ctx, *c)
	case *domain.TypingStopCommand:
		if !g.actingUserMatches(c.UserID, userID, c.CommandName()) {
			return
		}
		err = g.orchestrator.TypingStop(ctx, *c)
	case *domain.SendMessageCommand:
		if !g.actingUserMatches(c.SenderID, userID, c.CommandName()) {
			return
		}
		err = g.orchestrator.SendMessage(ctx, *c)
	case *domain.MarkReadCommand:
		if !g.actingUserMatches(c.UserID, userID, c.CommandName()) {
			return
		}
		err = g.orchestrator.MarkRead(ctx, *c)
	case *domain.ConversationOpenedCommand:
		if !g.actingUserMatches(c.UserID, userID, c.CommandName()) {
			return
		}
		err = g.orchestrator.ConversationOpened(ctx, *c)
	default:
		g.log.Warn("Unhandled command", "command", cmd.CommandName())
	}

	if err != nil {
		g.log.Warn("Command failed", "command", cmd.CommandName(), "userID", userID, "err", err)
	}
}

func (g *Gateway) actingUserMatches(claimed, authenticated, command string) bool {
	if claimed == authenticated {
		return true
	}
	g.log.Warn("Command for another user rejected",
		"command", command, "claimed", claimed, "authenticated", authenticated)
	return false
}
