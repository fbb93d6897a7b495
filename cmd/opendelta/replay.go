package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/opendelta/opendelta/internal/stream"
	"github.com/opendelta/opendelta/internal/streamjson"
)

// replayChunkSize keeps replay chunks small so partial frames, split UTF-8
// sequences, and split reasoning markers all get exercised.
const replayChunkSize = 64

// runReplay decodes a captured raw SSE byte stream and emits NDJSON events.
func runReplay(opts *options, capturePath string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg, opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	data, err := readCapture(capturePath)
	if err != nil {
		return err
	}

	decoder, err := stream.NewDecoder(stream.Config{
		Dialect:        stream.Dialect(cfg.Dialect),
		ReasoningOpen:  cfg.Reasoning.OpenMarker,
		ReasoningClose: cfg.Reasoning.CloseMarker,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	emitter := streamjson.NewEmitter(os.Stdout, sessionID)

	for start := 0; start < len(data); start += replayChunkSize {
		end := start + replayChunkSize
		if end > len(data) {
			end = len(data)
		}
		for _, event := range decoder.Feed(data[start:end]) {
			if err := emitter.Emit(event); err != nil {
				return fmt.Errorf("emit event: %w", err)
			}
		}
	}
	for _, event := range decoder.Finish() {
		if err := emitter.Emit(event); err != nil {
			return fmt.Errorf("emit event: %w", err)
		}
	}
	return nil
}

// readCapture loads the capture file, or stdin when the path is "-".
func readCapture(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read capture from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return data, nil
}
