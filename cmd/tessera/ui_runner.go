package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"tessera/internal/pipeline"
	"tessera/internal/ui"
)

type decodeOutcome struct {
	results []pipeline.SentenceResult
	summary pipeline.Summary
	err     error
}

func runDecodeWithUI(ctx context.Context, title string, req *pipeline.Request) ([]pipeline.SentenceResult, pipeline.Summary, error) {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan decodeOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = pipeline.ChannelSink{Ch: events}
		res, sum, err := pipeline.Decode(ctx, &reqCopy)
		outcomeCh <- decodeOutcome{results: res, summary: sum, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, req.Lines, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, outcome.summary, uiErr
	}
	return outcome.results, outcome.summary, outcome.err
}
