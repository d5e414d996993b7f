package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vialshare/vialshare-backend/api/responses"
	"github.com/vialshare/vialshare-backend/internal/progress"
	pkgerrors "github.com/vialshare/vialshare-backend/pkg/errors"
	"github.com/vialshare/vialshare-backend/pkg/logger"
)

const streamHeartbeatInterval = 25 * time.Second

// ProgressController serves authoritative snapshots and the SSE change feed.
type ProgressController struct {
	logg     *logger.Logger
	progress *progress.Service
}

func NewProgressController(logg *logger.Logger, progressSvc *progress.Service) *ProgressController {
	return &ProgressController{logg: logg, progress: progressSvc}
}

func (c *ProgressController) Snapshot(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathUUID(r, "batchID")
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	snapshot, err := c.progress.Snapshot(r.Context(), batchID)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, snapshot)
}

// Stream relays progress events over server-sent events. The first frame is
// always a fresh snapshot so clients never render from the feed alone.
func (c *ProgressController) Stream(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathUUID(r, "batchID")
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		responses.WriteError(r.Context(), c.logg, w,
			pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported by connection"))
		return
	}

	snapshot, err := c.progress.Snapshot(r.Context(), batchID)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	events, err := c.progress.Subscribe(r.Context(), batchID)
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "snapshot", snapshot); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			if err := writeSSE(w, string(event.Type), event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, eventName string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName, data)
	return err
}
