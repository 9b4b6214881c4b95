// Package stream drives a vendor streaming session and re-frames it as an
// OpenAI-compliant Server-Sent-Events sequence: exactly one role
// announcement first, every content/tool-call frame in vendor order in
// between, exactly one [DONE] sentinel last.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"gigaproxy/internal/gigachat"
	"gigaproxy/internal/translate"
)

// DefaultStallTimeout bounds the wait for the next vendor chunk.
const DefaultStallTimeout = 30 * time.Second

type Reframer struct {
	assembler    *translate.Assembler
	logger       *slog.Logger
	stallTimeout time.Duration
}

func NewReframer(assembler *translate.Assembler, logger *slog.Logger, stallTimeout time.Duration) *Reframer {
	if stallTimeout <= 0 {
		stallTimeout = DefaultStallTimeout
	}

	return &Reframer{
		assembler:    assembler,
		logger:       logger,
		stallTimeout: stallTimeout,
	}
}

// Run consumes the vendor stream and writes the re-framed SSE sequence to w.
// The vendor stream is released on every exit path. Run never retries: a
// mid-stream vendor error yields one error frame plus the sentinel, a stall
// yields just the sentinel, and a client disconnect stops consumption
// immediately.
func (r *Reframer) Run(ctx context.Context, w http.ResponseWriter, vendorStream *gigachat.ChatStream) {
	defer vendorStream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	completionID := translate.CompletionID()
	created := time.Now().Unix()

	// Prime clients that expect the role in the first delta, before any
	// vendor data arrives.
	if err := r.writeChunk(w, r.assembler.RoleChunk(completionID, created)); err != nil {
		r.logger.Warn("Client disconnected before first frame", "error", err)
		return
	}

	stall := time.NewTimer(r.stallTimeout)
	defer stall.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Client disconnected mid-stream", "completion_id", completionID)
			return

		case <-stall.C:
			r.logger.Warn("Vendor stream stalled, terminating early",
				"completion_id", completionID, "timeout", r.stallTimeout)
			r.writeDone(w)

			return

		case ev, ok := <-vendorStream.Events():
			if !ok {
				// Vendor sequence exhausted.
				r.writeDone(w)
				return
			}

			if ev.Err != nil {
				r.logger.Error("Vendor stream error", "completion_id", completionID, "error", ev.Err)
				r.writeErrorFrame(w, ev.Err)

				return
			}

			content, finishReason, toolCalls := r.assembler.ChunkFields(ev.Chunk)
			chunk := r.assembler.Chunk(completionID, created, content, finishReason, toolCalls)

			if err := r.writeChunk(w, chunk); err != nil {
				r.logger.Info("Client write failed, releasing vendor stream",
					"completion_id", completionID, "error", err)

				return
			}

			if !stall.Stop() {
				select {
				case <-stall.C:
				default:
				}
			}
			stall.Reset(r.stallTimeout)
		}
	}
}

func (r *Reframer) writeChunk(w http.ResponseWriter, chunk any) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}

	flush(w)

	return nil
}

func (r *Reframer) writeDone(w http.ResponseWriter) {
	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		r.logger.Debug("Failed to write stream sentinel", "error", err)
		return
	}

	flush(w)
}

func (r *Reframer) writeErrorFrame(w http.ResponseWriter, cause error) {
	if _, err := w.Write(translate.ErrorStreamFrame(cause.Error())); err != nil {
		r.logger.Debug("Failed to write error frame", "error", err)
		return
	}

	flush(w)
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
