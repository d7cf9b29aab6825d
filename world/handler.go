package world

import (
	"context"
	"fmt"
	"time"

	"github.com/yysun/agent-world-sub006/bus"
	"github.com/yysun/agent-world-sub006/core"
	"github.com/yysun/agent-world-sub006/decision"
	"github.com/yysun/agent-world-sub006/internal/util"
	"github.com/yysun/agent-world-sub006/model"
)

// responseHandler builds the per-agent bus handler: record the trigger,
// generate a reply from the agent's memory, auto-mention agent-class
// senders, record and publish the reply. Errors bubble to the bus,
// which isolates them per agent and surfaces them as [Error] entries.
func (m *Manager) responseHandler(lw *liveWorld, a *core.Agent) bus.Handler {
	return func(ctx context.Context, ev core.Message) error {
		in := core.NewMemoryEntry(core.RoleUser, ev.Content, ev.Sender.ID)
		a.AppendMemory(in)
		m.persistMemory(lw.world.ID, a, in)

		req, err := m.buildRequest(lw.world, a)
		if err != nil {
			return err
		}
		mdl := m.modelFor(a)

		start := time.Now()
		resp, err := mdl.Generate(ctx, req)
		if err != nil {
			// One generation failure per call, never retried here.
			return fmt.Errorf("generate for %s (%s): %w", a.Name, mdl.Info().Name, err)
		}
		m.logger.Debug("generation complete",
			"world_id", lw.world.ID, "agent", a.Name,
			"model", mdl.Info().Name, "elapsed", time.Since(start))

		content := autoMention(resp.Content, ev.Sender)
		out := core.NewMemoryEntry(core.RoleAssistant, content, a.Name)
		a.AppendMemory(out)
		m.persistMemory(lw.world.ID, a, out)

		// The owner may have been deleted while the model was running;
		// a cancelled subscription discards its result instead of
		// publishing into a dead world.
		if ctx.Err() != nil {
			m.logger.Debug("discarding reply for removed agent",
				"world_id", lw.world.ID, "agent", a.Name)
			return nil
		}

		reply := core.NewAgentMessage(a.Name, content).WithSession(ev.SessionID)
		m.record(lw.world.ID, reply)
		lw.bus.Publish(reply)
		if err := m.coord.HandleMessage(lw.world, reply); err != nil {
			m.logger.Warn("chat bookkeeping failed",
				"world_id", lw.world.ID, "error", err)
		}
		return nil
	}
}

// buildRequest assembles the generation input: the rendered system
// prompt plus a bounded snapshot of the agent's memory.
func (m *Manager) buildRequest(w *core.World, a *core.Agent) (model.Request, error) {
	history := a.GetMemory()
	if max := m.cfg.MaxHistoryEntries; len(history) > max {
		history = history[len(history)-max:]
	}
	system := a.SystemPrompt
	if system != "" {
		rendered, err := util.RenderTemplate(system, map[string]any{
			"AgentName": a.Name,
			"WorldName": w.Name,
		})
		if err != nil {
			return model.Request{}, fmt.Errorf("render system prompt for %s: %w", a.Name, err)
		}
		system = rendered
	}
	return model.Request{System: system, History: history, AgentName: a.Name}, nil
}

// autoMention keeps agent-to-agent threads addressed: a reply triggered
// by another agent gets that agent's mention prepended unless the model
// already produced one. Human and system triggers pass through; their
// replies are public either way.
func autoMention(content string, trigger core.Sender) string {
	if !trigger.IsAgent() || trigger.ID == "" {
		return content
	}
	if decision.IsParagraphMention(content, trigger.ID) {
		return content
	}
	return "@" + trigger.ID + " " + content
}

// persistMemory mirrors one appended entry to storage together with the
// agent's counter. Fire and forget: a storage fault is logged and
// delivery continues.
func (m *Manager) persistMemory(worldID string, a *core.Agent, entry core.MemoryEntry) {
	if err := m.agents.AppendMemory(worldID, a.ID, entry); err != nil {
		m.logger.Warn("memory write failed",
			"world_id", worldID, "agent_id", a.ID, "error", err)
	}
	if err := m.agents.SaveAgent(worldID, a); err != nil {
		m.logger.Warn("agent state write failed",
			"world_id", worldID, "agent_id", a.ID, "error", err)
	}
}
