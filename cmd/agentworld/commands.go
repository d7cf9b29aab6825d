package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yysun/agent-world-sub006/approval"
	"github.com/yysun/agent-world-sub006/config"
	"github.com/yysun/agent-world-sub006/core"
)

type wireFunc func() (*app, error)

func newWorldCmd(wire wireFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "world",
		Short: "Create, list and delete worlds",
	}

	var (
		specPath  string
		turnLimit int
	)
	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a world, optionally from a YAML spec with its agents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire()
			if err != nil {
				return err
			}
			defer a.close()

			if specPath != "" {
				spec, err := config.LoadWorldSpec(specPath)
				if err != nil {
					return err
				}
				w, err := createFromSpec(a, spec)
				if err != nil {
					return err
				}
				fmt.Printf("Created world %s (%s) with %d agents\n", w.Name, w.ID, w.AgentCount())
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("a world name or --spec is required")
			}
			w, err := a.manager.CreateWorld(args[0], func(o *core.WorldOptions) {
				o.TurnLimit = turnLimit
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created world %s (%s), turn limit %d\n", w.Name, w.ID, w.EffectiveTurnLimit())
			return nil
		},
	}
	create.Flags().StringVar(&specPath, "spec", "", "YAML world definition (name, agents, turn limit)")
	create.Flags().IntVar(&turnLimit, "turn-limit", 0, "turn limit (0 = default)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List worlds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire()
			if err != nil {
				return err
			}
			defer a.close()

			worlds, err := a.manager.ListWorlds()
			if err != nil {
				return err
			}
			if len(worlds) == 0 {
				fmt.Println("No worlds.")
				return nil
			}
			for _, w := range worlds {
				fmt.Printf("%s  %-20s turn-limit=%d updated=%s\n",
					w.ID, w.Name, w.EffectiveTurnLimit(), w.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <world-id>",
		Short: "Delete a world and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire()
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.manager.DeleteWorld(args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted.")
			return nil
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

func createFromSpec(a *app, spec *config.WorldSpec) (*core.World, error) {
	w, err := a.manager.CreateWorld(spec.Name, func(o *core.WorldOptions) {
		o.Description = spec.Description
		o.TurnLimit = spec.TurnLimit
	})
	if err != nil {
		return nil, err
	}
	for _, as := range spec.Agents {
		_, err := a.manager.CreateAgent(w.ID, as.Name, func(o *core.AgentOptions) {
			o.Description = as.Description
			o.Provider = as.Provider
			o.Model = as.Model
			o.SystemPrompt = as.SystemPrompt
		})
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", as.Name, err)
		}
	}
	return w, nil
}

func newAgentCmd(wire wireFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage a world's agents",
	}

	var (
		provider     string
		modelID      string
		systemPrompt string
	)
	add := &cobra.Command{
		Use:   "add <world-id> <name>",
		Short: "Add an agent to a world",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire()
			if err != nil {
				return err
			}
			defer a.close()
			if _, ok, err := a.manager.OpenWorld(args[0]); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("world %s: %w", args[0], core.ErrWorldNotFound)
			}
			ag, err := a.manager.CreateAgent(args[0], args[1], func(o *core.AgentOptions) {
				o.Provider = provider
				o.Model = modelID
				o.SystemPrompt = systemPrompt
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added @%s (%s)\n", ag.Name, ag.ID)
			return nil
		},
	}
	add.Flags().StringVar(&provider, "provider", "", "model provider (anthropic, openai)")
	add.Flags().StringVar(&modelID, "model", "", "provider-specific model id")
	add.Flags().StringVar(&systemPrompt, "system-prompt", "", "persona text; {{.AgentName}} and {{.WorldName}} expand")

	list := &cobra.Command{
		Use:   "list <world-id>",
		Short: "List a world's agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire()
			if err != nil {
				return err
			}
			defer a.close()
			w, ok, err := a.manager.OpenWorld(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("world %s: %w", args[0], core.ErrWorldNotFound)
			}
			for _, ag := range w.Agents() {
				fmt.Printf("@%-15s %s provider=%s calls=%d memory=%d\n",
					ag.Name, ag.ID, ag.Provider, ag.CallCount(), ag.MemoryLen())
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <world-id> <name>",
		Short: "Remove an agent from a world",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire()
			if err != nil {
				return err
			}
			defer a.close()
			if _, ok, err := a.manager.OpenWorld(args[0]); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("world %s: %w", args[0], core.ErrWorldNotFound)
			}
			if err := a.manager.DeleteAgent(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("Removed.")
			return nil
		},
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}

func newApproveCmd(wire wireFunc) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "approve <world-id> <agent> [deny|approve]",
		Short: "List or answer an agent's pending tool approval requests",
		Long:  "Without a decision argument, lists pending requests. With one, answers the\noldest pending request; --scope picks once or session for approvals.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire()
			if err != nil {
				return err
			}
			defer a.close()

			worldID := args[0]
			if _, ok, err := a.manager.OpenWorld(worldID); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("world %s: %w", worldID, core.ErrWorldNotFound)
			}
			ag, ok := a.manager.GetAgent(worldID, args[1])
			if !ok {
				return fmt.Errorf("agent %s: %w", args[1], core.ErrAgentNotFound)
			}
			pending, err := a.manager.PendingApprovals(worldID, ag.ID)
			if err != nil {
				return err
			}

			if len(args) == 2 {
				if len(pending) == 0 {
					fmt.Println("Nothing pending.")
					return nil
				}
				for _, p := range pending {
					fmt.Printf("%s  %s in %s  options=%s\n",
						p.ToolCallID, p.Request.ToolName, p.Request.WorkingDirectory,
						strings.Join(p.Request.Options, "/"))
				}
				return nil
			}

			if len(pending) == 0 {
				return fmt.Errorf("agent %s has nothing pending", ag.Name)
			}
			oldest := pending[0]
			d, s, err := parseDecision(args[2], scope)
			if err != nil {
				return err
			}
			req := approval.Request{
				ToolName:         oldest.Request.ToolName,
				ToolArgs:         oldest.Request.ToolArgs,
				WorkingDirectory: oldest.Request.WorkingDirectory,
			}
			if err := a.manager.SubmitApproval(worldID, ag.ID, oldest.ToolCallID, d, s, req); err != nil {
				return err
			}
			fmt.Printf("Recorded %s", d)
			if d == approval.DecisionApprove {
				fmt.Printf("/%s", s)
			}
			fmt.Printf(" for %s\n", req.ToolName)
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "once", "approval scope: once or session")
	return cmd
}

func parseDecision(decision, scope string) (approval.Decision, approval.Scope, error) {
	switch strings.ToLower(decision) {
	case "deny":
		return approval.DecisionDeny, "", nil
	case "approve":
	default:
		return "", "", fmt.Errorf("decision must be approve or deny, got %q", decision)
	}
	switch strings.ToLower(scope) {
	case "once":
		return approval.DecisionApprove, approval.ScopeOnce, nil
	case "session":
		return approval.DecisionApprove, approval.ScopeSession, nil
	default:
		return "", "", fmt.Errorf("scope must be once or session, got %q", scope)
	}
}

func newHistoryCmd(wire wireFunc) *cobra.Command {
	var agentName string
	cmd := &cobra.Command{
		Use:   "history <world-id>",
		Short: "Show a world's message log, or one agent's filtered view of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire()
			if err != nil {
				return err
			}
			defer a.close()
			if _, ok, err := a.manager.OpenWorld(args[0]); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("world %s: %w", args[0], core.ErrWorldNotFound)
			}

			var msgs []core.Message
			if agentName != "" {
				ag, ok := a.manager.GetAgent(args[0], agentName)
				if !ok {
					return fmt.Errorf("agent %s: %w", agentName, core.ErrAgentNotFound)
				}
				msgs, err = a.manager.AgentVisibleHistory(args[0], ag.ID)
			} else {
				msgs, err = a.manager.Messages(args[0], "")
			}
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Printf("[%s] %s: %s\n",
					m.Timestamp.Format("15:04:05"), m.Sender.ID, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&agentName, "agent", "", "replay the log as this agent would have seen it")
	return cmd
}
