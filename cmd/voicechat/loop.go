package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/hammamikhairi/voicechat/internal/conversation"
	"github.com/hammamikhairi/voicechat/internal/pipeline"
)

// runLoop runs a fixed number of turns from the console: Enter starts
// recording, Enter again stops it and the turn runs to completion before
// the next prompt. EOF on in ends the loop early.
func runLoop(ctx context.Context, turns int, rec pipeline.Capture, r *pipeline.Runner, in io.Reader, out io.Writer) error {
	lines := make(chan struct{})
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// wait blocks for the next Enter; false means stop.
	wait := func() bool {
		select {
		case _, ok := <-lines:
			return ok
		case <-ctx.Done():
			return false
		}
	}

	for i := 1; i <= turns; i++ {
		fmt.Fprintf(out, "\n--- Turn %d/%d ---\n", i, turns)
		fmt.Fprintln(out, "Press Enter to start recording.")
		if !wait() {
			break
		}
		rec.Start()
		fmt.Fprintln(out, "Recording… press Enter to stop.")
		if !wait() {
			rec.Stop()
			break
		}
		samples := rec.Stop()

		_, err := r.Run(ctx, samples, func(ev pipeline.Event) {
			switch ev.Kind {
			case pipeline.EventTranscribed:
				text := ev.Text
				if text == "" {
					text = conversation.LineNoSpeech
				}
				fmt.Fprintf(out, "You: %s\n", text)
			case pipeline.EventReplied:
				fmt.Fprintf(out, "AI:  %s\n", ev.Reply)
			case pipeline.EventDone:
				if ev.Result != nil && ev.Result.LogErr != nil {
					fmt.Fprintf(out, "(turn %d was not logged: %v)\n", ev.TurnID, ev.Result.LogErr)
				}
			}
		})
		if err != nil {
			fmt.Fprintf(out, "(transcription failed: %v)\n", err)
		}
	}

	fmt.Fprintln(out, "\nConversation ended.")
	return nil
}
