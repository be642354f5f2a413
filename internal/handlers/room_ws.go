// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/whowillhear/server/internal/cache"
	"github.com/whowillhear/server/internal/database"
	"github.com/whowillhear/server/internal/middleware"
	"github.com/whowillhear/server/internal/models"
	"github.com/whowillhear/server/internal/room"
)

// sweepInterval is how often each live room checks for silent participants.
const sweepInterval = 10 * time.Second

// RoomWSHandler upgrades a client into a room: authentication, the password
// gate, seating, and then the read/write pumps for the session.
func RoomWSHandler(logger *logrus.Logger, rs *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		idStr := strings.Split(strings.TrimPrefix(r.URL.Path, "/room/ws/"), "/")[0]
		roomID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}

		// Authenticate before the upgrade so the guest cookie can still be set.
		// On failure the upgrade still happens, so the client gets a structured
		// close code instead of a torn connection.
		userID, authErr := EnsureGuestUser(w, r)

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"room"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if authErr != nil {
			logger.Warnf("user authentication failed for room %d: %v", roomID, authErr)
			c.Close(InvalidAuthTokenError, "could not establish a session")
			return
		}

		if c.Subprotocol() != "room" {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}

		ctx := r.Context()
		rec, err := database.GetRoom(ctx, roomID)
		if err != nil {
			c.Close(InvalidRoomIDError, "room does not exist")
			return
		}
		status, err := room.ParseStatus(rec.Status)
		if err != nil {
			logger.Errorf("room %d: %v", roomID, err)
			c.Close(websocket.StatusInternalError, "room state unreadable")
			return
		}
		if status.Terminal() {
			c.Close(RoomClosedError, "room is no longer joinable")
			return
		}
		if rec.HasPassword() && r.URL.Query().Get("password") != rec.Password {
			c.Close(websocket.StatusPolicyViolation, "wrong room password")
			return
		}

		lr, err := rs.liveRoom(ctx, roomID)
		if err != nil {
			logger.Errorf("room %d: failed to build live room: %v", roomID, err)
			c.Close(websocket.StatusInternalError, "failed to load room")
			return
		}
		lr.StartSweep(sweepInterval)

		// Rejoining keeps the original seat so the score survives.
		participant, err := database.GetParticipantByRoomAndUser(ctx, roomID, userID)
		if err != nil {
			participant = &models.Participant{RoomID: roomID, UserID: userID}
			if err := database.InsertParticipant(ctx, participant); err != nil {
				logger.Errorf("room %d: failed to seat user %d: %v", roomID, userID, err)
				c.Close(websocket.StatusInternalError, "failed to join room")
				return
			}
		}
		if u, err := database.GetUserByID(ctx, userID); err == nil {
			participant.User = u
		}

		connCtx, cancel := context.WithCancel(ctx)
		conn := &room.Conn{
			ParticipantID: participant.ID,
			UserID:        userID,
			Cancel:        cancel,
			OutChan:       make(chan map[string]interface{}, 16),
			IsHost:        lr.HostUserID == userID,
		}

		lr.AddConnection(participant, conn)
		if err := cache.TouchPresence(ctx, roomID, participant.ID); err != nil {
			logger.Warnf("room %d: presence touch failed: %v", roomID, err)
		}
		middleware.LogWebSocketConnect(logger, remoteAddr, roomID, participant.ID.String())

		// Late joiners catch up from the snapshot before live events arrive.
		sendJoinState(connCtx, rs, lr, conn)

		go roomWritePump(connCtx, c, conn, logger)
		roomReadPump(connCtx, c, rs, lr, conn, logger)

		middleware.LogWebSocketDisconnect(logger, remoteAddr, roomID, participant.ID.String(), nil)
		lr.RemoveConnection(participant.ID)
		if err := cache.ClearPresence(context.Background(), roomID, participant.ID); err != nil {
			logger.Warnf("room %d: presence clear failed: %v", roomID, err)
		}
	}
}

// sendJoinState writes the authoritative state directly to one connection.
func sendJoinState(ctx context.Context, rs *RoomServer, lr *room.Room, conn *room.Conn) {
	msg := map[string]interface{}{
		"type":   "room_state",
		"roomId": lr.ID,
		"status": string(lr.CurrentStatus()),
		"roster": lr.Roster(),
	}
	if snap, err := rs.Broadcaster.LoadSnapshot(ctx, lr.ID); err == nil && snap != nil {
		msg["seq"] = snap.Seq
		if len(snap.State) > 0 {
			msg["state"] = json.RawMessage(snap.State)
		}
	}
	conn.Write(msg)
}

// roomReadPump handles inbound messages until the connection dies. Any
// inbound traffic counts as a liveness signal.
func roomReadPump(ctx context.Context, c *websocket.Conn, rs *RoomServer, lr *room.Room, conn *room.Conn, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("room %d: websocket closed normally for %s", lr.ID, conn.ParticipantID)
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("room %d: read error for %s: %v", lr.ID, conn.ParticipantID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(msg, &packet); err != nil {
			conn.WriteError("invalid JSON format")
			continue
		}

		lr.Touch(conn.ParticipantID)
		if err := cache.TouchPresence(ctx, lr.ID, conn.ParticipantID); err != nil {
			logger.Warnf("room %d: presence touch failed: %v", lr.ID, err)
		}

		handleRoomMessage(ctx, packet, rs, lr, conn, logger)
	}
}

// handleRoomMessage interprets the "type" field of one inbound packet.
func handleRoomMessage(ctx context.Context, packet map[string]interface{}, rs *RoomServer, lr *room.Room, conn *room.Conn, logger *logrus.Logger) {
	action, _ := packet["type"].(string)

	switch action {
	case "heartbeat":
		// Touch already happened in the read pump.

	case "start_game":
		if !conn.IsHost {
			conn.WriteError("only the host can start the game")
			return
		}
		if err := rs.startGame(ctx, lr); err != nil {
			logger.Warnf("room %d: start_game rejected: %v", lr.ID, err)
			conn.WriteError("cannot start the game right now")
		}

	case "ready":
		lr.Mu.Lock()
		ctrl := lr.Controller
		lr.Mu.Unlock()
		if ctrl != nil {
			ctrl.Ready()
		}

	case "guess":
		option, _ := packet["option"].(string)
		if option == "" {
			conn.WriteError("guess requires an option")
			return
		}
		lr.Mu.Lock()
		ctrl := lr.Controller
		lr.Mu.Unlock()
		if ctrl == nil {
			conn.WriteError("no game in progress")
			return
		}
		points, accepted := ctrl.SubmitGuess(conn.ParticipantID, option)
		conn.Write(map[string]interface{}{
			"type":     "guess_ack",
			"accepted": accepted,
			"points":   points,
		})

	case "chat":
		msg, _ := packet["msg"].(string)
		if msg != "" {
			lr.Broadcast("chat", map[string]interface{}{
				"participantId": conn.ParticipantID.String(),
				"msg":           msg,
				"ts":            time.Now().Unix(),
			})
		}

	case "leave":
		// Orderly exit; lobby leavers give up their seat entirely.
		if lr.CurrentStatus() == room.StatusLobby {
			if err := database.RemoveParticipant(ctx, conn.ParticipantID); err != nil {
				logger.Warnf("room %d: failed to remove participant %s: %v", lr.ID, conn.ParticipantID, err)
			}
		}
		if conn.Cancel != nil {
			conn.Cancel()
		}

	default:
		conn.WriteError("unknown action type: " + action)
	}
}

// roomWritePump drains the connection's out-channel onto the socket and keeps
// the connection alive with pings.
func roomWritePump(ctx context.Context, c *websocket.Conn, conn *room.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("failed to marshal outgoing msg for %s: %v", conn.ParticipantID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for %s: %v", conn.ParticipantID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping failed for %s, assuming disconnect: %v", conn.ParticipantID, err)
				return
			}
		}
	}
}
