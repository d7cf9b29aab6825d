// Package chat owns chat-session lifecycle for a world: the current
// session pointer, the reuse heuristic for new conversations,
// auto-titling from human messages and message-count bookkeeping. The
// coordinator is the only component that writes World.CurrentSessionID,
// so the stored session, the stored pointer and the live world entity
// stay consistent.
package chat

import (
	"fmt"
	"time"

	"github.com/yysun/agent-world-sub006/core"
	"github.com/yysun/agent-world-sub006/logging"
)

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Logger receives session lifecycle events. Defaults to a no-op
	// logger.
	Logger logging.Logger
}

// Coordinator applies session bookkeeping in response to published
// messages and explicit session commands.
type Coordinator struct {
	worlds core.WorldStore
	chats  core.ChatStore
	logger logging.Logger
}

// NewCoordinator creates a Coordinator backed by the given stores.
func NewCoordinator(worlds core.WorldStore, chats core.ChatStore, optFns ...func(*CoordinatorOptions)) *Coordinator {
	opts := CoordinatorOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Coordinator{worlds: worlds, chats: chats, logger: opts.Logger}
}

// IsReusable reports whether the world's current session may serve a
// new conversation instead of creating another one. Worlds without a
// current session report false.
func (c *Coordinator) IsReusable(w *core.World) bool {
	if w == nil || w.CurrentSessionID == "" {
		return false
	}
	sess, err := c.chats.LoadChat(w.ID, w.CurrentSessionID)
	if err != nil {
		c.logger.Warn("chat.session.load_failed",
			"world_id", w.ID, "session_id", w.CurrentSessionID, "error", err)
		return false
	}
	if sess == nil {
		return false
	}
	return sess.Reusable()
}

// EnsureSession returns the session a new conversation should target:
// the current one when the reuse heuristic allows it, otherwise a fresh
// session. A fresh session is persisted before the world's pointer, so
// the pointer never references an unsaved session.
func (c *Coordinator) EnsureSession(w *core.World) (*core.ChatSession, error) {
	if w == nil {
		return nil, fmt.Errorf("nil world")
	}

	if w.CurrentSessionID != "" {
		sess, err := c.chats.LoadChat(w.ID, w.CurrentSessionID)
		if err != nil {
			return nil, fmt.Errorf("load current session: %w", err)
		}
		if sess != nil && sess.Reusable() {
			return sess, nil
		}
	}

	sess := core.NewChatSession(w.ID)
	if err := c.chats.SaveChat(w.ID, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	w.CurrentSessionID = sess.ID
	w.Touch()
	if err := c.worlds.SaveWorld(w); err != nil {
		return nil, fmt.Errorf("save world: %w", err)
	}

	c.logger.Info("chat.session.created", "world_id", w.ID, "session_id", sess.ID)
	return sess, nil
}

// HandleMessage applies per-message bookkeeping after a publish: human
// messages retitle the current session from their content, agent
// messages bump the message count, system and world traffic is ignored
// entirely. A world without a current session is left untouched.
func (c *Coordinator) HandleMessage(w *core.World, msg core.Message) error {
	if w == nil || w.CurrentSessionID == "" {
		return nil
	}
	if !msg.Sender.IsHuman() && !msg.Sender.IsAgent() {
		return nil
	}

	sess, err := c.chats.LoadChat(w.ID, w.CurrentSessionID)
	if err != nil {
		return fmt.Errorf("load current session: %w", err)
	}
	if sess == nil {
		c.logger.Warn("chat.session.missing",
			"world_id", w.ID, "session_id", w.CurrentSessionID)
		return nil
	}

	if msg.Sender.IsHuman() {
		title := GenerateTitle(msg.Content)
		if title != sess.Name {
			c.logger.Debug("chat.title.updated",
				"world_id", w.ID, "session_id", sess.ID, "title", title)
		}
		sess.Name = title
	} else {
		sess.MessageCount++
	}

	sess.UpdatedAt = time.Now().UTC()
	if err := c.chats.SaveChat(w.ID, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// DeleteWithFallback deletes a session. When the deleted session was
// the current one, the pointer falls back to the most recently updated
// remaining session, or clears when none remain, and the world is
// persisted.
func (c *Coordinator) DeleteWithFallback(w *core.World, sessionID string) error {
	if w == nil {
		return fmt.Errorf("nil world")
	}
	if err := c.chats.DeleteChat(w.ID, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if w.CurrentSessionID != sessionID {
		return nil
	}

	remaining, err := c.chats.ListChats(w.ID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	w.CurrentSessionID = ""
	if len(remaining) > 0 {
		w.CurrentSessionID = remaining[0].ID
	}
	w.Touch()
	if err := c.worlds.SaveWorld(w); err != nil {
		return fmt.Errorf("save world: %w", err)
	}

	c.logger.Info("chat.session.fallback",
		"world_id", w.ID, "session_id", w.CurrentSessionID)
	return nil
}
