package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/directory"
	"github.com/vovakirdan/roomchat/internal/session"
	"github.com/vovakirdan/roomchat/internal/transport/ws"
)

func newChatCmd(configPath *string) *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a chat room from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if serverURL != "" {
				cfg.ServerURL = serverURL
			}

			dir := directory.New(cfg.ServerURL, logger)
			dialer := ws.Dialer{BaseURL: wsBaseURL(cfg.ServerURL)}
			machine := session.NewMachine(dir, dialer, session.Options{
				InferPresence: cfg.Presence == config.PresenceInfer,
			}, logger)
			defer machine.Exit()

			return runChatLoop(cmd.Context(), machine)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "chat server base URL (overrides config)")
	return cmd
}

// wsBaseURL converts the registry base URL to the websocket scheme.
func wsBaseURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}

// runChatLoop is a minimal terminal front end over the machine snapshot: a
// render goroutine prints whatever arrived since the last snapshot, and
// stdin lines are interpreted according to the current step.
func runChatLoop(ctx context.Context, machine *session.Machine) error {
	done := make(chan struct{})
	defer close(done)
	go renderLoop(machine, done)

	fmt.Println("Enter a room id to join, or /create <name> to make a new room.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		snap := machine.Snapshot()
		switch snap.Step {
		case session.StepSelectingRoom:
			if name, ok := strings.CutPrefix(line, "/create "); ok {
				if err := machine.CreateRoom(ctx, name); err != nil {
					continue
				}
			} else if err := machine.SubmitRoomID(ctx, line); err != nil {
				continue
			}
			fmt.Printf("Joining room %s. Choose your username:\n", machine.Snapshot().RoomID)

		case session.StepEnteringUsername, session.StepDisconnected:
			if line == "/exit" {
				machine.Exit()
				fmt.Println("Enter a room id to join, or /create <name> to make a new room.")
				continue
			}
			_ = machine.SubmitUsername(ctx, line)

		case session.StepActive:
			if line == "/exit" {
				machine.Exit()
				fmt.Println("Left the room. Enter a room id to join, or /create <name>.")
				continue
			}
			if line == "/who" {
				fmt.Printf("Online: %s\n", strings.Join(snap.Online, ", "))
				continue
			}
			_ = machine.Send(ctx, line)
		}
	}
	return scanner.Err()
}

// renderLoop prints new messages and notices as the snapshot evolves.
func renderLoop(machine *session.Machine, done <-chan struct{}) {
	var printed int
	var lastNotice string
	var lastStep session.Step

	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		snap := machine.Snapshot()
		if snap.Step != lastStep {
			lastStep = snap.Step
			printed = 0
			if snap.Step == session.StepActive {
				fmt.Printf("Joined room %s as %s. /exit to leave, /who for the user list.\n", snap.RoomID, snap.Username)
			}
		}
		if snap.Notice != "" && snap.Notice != lastNotice {
			fmt.Printf("* %s\n", snap.Notice)
		}
		lastNotice = snap.Notice

		msgs := snap.Messages
		for ; printed < len(msgs); printed++ {
			msg := msgs[printed]
			switch msg.Origin {
			case session.OriginSystem:
				fmt.Printf("-- %s\n", msg.Text)
			case session.OriginLocal:
				fmt.Printf("me: %s\n", msg.Text)
			default:
				fmt.Printf("%s: %s\n", msg.Author, msg.Text)
			}
		}
	}
}
