package ws

import (
	"classroom-chat/internal/presentation"
	"classroom-chat/internal/session"
)

// Outbound frame types.
const (
	frameHistory = "history"
	frameMessage = "message"
	frameStatus  = "status"
	frameError   = "error"
)

// Inbound frame types.
const frameSend = "send"

type inboundFrame struct {
	Type            string `json:"type"`
	Content         string `json:"content"`
	ClientMessageID string `json:"client_message_id"`
}

// framesForChange converts a session change into the frames sent to the
// browser. Messages are decorated with display names and renderings.
func framesForChange(change session.Change) []map[string]interface{} {
	switch change.Kind {
	case session.ChangeHistory:
		frame := map[string]interface{}{
			"type":     frameHistory,
			"messages": presentation.DecorateAll(change.Messages),
		}
		if change.Err != nil {
			frame["error"] = "failed to load history"
		}
		return []map[string]interface{}{frame}
	case session.ChangeMessage:
		frames := make([]map[string]interface{}, 0, len(change.Messages))
		for _, view := range presentation.DecorateAll(change.Messages) {
			frames = append(frames, map[string]interface{}{"type": frameMessage, "message": view})
		}
		return frames
	case session.ChangeState:
		frame := map[string]interface{}{"type": frameStatus, "state": change.State}
		if change.Err != nil {
			frame["error"] = change.Err.Error()
		}
		return []map[string]interface{}{frame}
	}
	return nil
}

func errorFrame(message string) map[string]interface{} {
	return map[string]interface{}{"type": frameError, "error": message}
}
