package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yysun/agent-world-sub006/core"
)

func newChatCmd(wire wireFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <world-id>",
		Short: "Chat with a world's agents interactively",
		Long:  "Opens the world, streams agent replies, errors and turn-limit notices, and sends\neach typed line as a human message. Slash commands: /new starts a fresh chat\nsession, /agents lists the roster, /quit leaves.",
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
			return runChat(cmd.Context(), a, w)
		},
	}
}

func runChat(ctx context.Context, a *app, w *core.World) error {
	events, cancel := w.Events().Subscribe(256)
	defer cancel()

	// Printing happens on one goroutine; the REPL loop only reads stdin
	// and publishes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case core.StreamMessage:
				if ev.Message.Sender.IsAgent() {
					fmt.Printf("@%s: %s\n", ev.Message.Sender.ID, ev.Message.Content)
				}
			case core.StreamNotice:
				fmt.Printf("-- %s\n", ev.Message.Content)
			case core.StreamError:
				fmt.Printf("!! %s\n", ev.Message.Content)
			}
		}
	}()

	fmt.Printf("Connected to %s (%d agents). /quit to leave.\n", w.Name, w.AgentCount())
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			cancel()
			<-done
			return nil
		case line == "/agents":
			for _, ag := range w.Agents() {
				fmt.Printf("@%-15s calls=%d\n", ag.Name, ag.CallCount())
			}
			continue
		case line == "/new":
			sess, err := a.manager.NewChat(w.ID)
			if err != nil {
				fmt.Println("!!", err)
				continue
			}
			fmt.Printf("-- new chat session %s\n", sess.ID)
			continue
		case strings.HasPrefix(line, "/"):
			fmt.Println("-- unknown command; /new, /agents, /quit")
			continue
		}
		if _, err := a.manager.SendHumanMessage(ctx, w.ID, line); err != nil {
			fmt.Println("!!", err)
		}
	}
	cancel()
	<-done
	return sc.Err()
}
