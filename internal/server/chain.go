package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammad-safakhou/postwise/internal/chain"
	"github.com/mohammad-safakhou/postwise/internal/content"
	"github.com/mohammad-safakhou/postwise/internal/progress"
	"github.com/mohammad-safakhou/postwise/internal/schedule"
	"github.com/mohammad-safakhou/postwise/internal/telemetry"
)

// Stream cadences. Keep-alives stop intermediary proxies from timing out
// the connection; the poll interval bounds how stale a consumer can get.
const (
	streamPollInterval   = 500 * time.Millisecond
	streamKeepAlive      = 15 * time.Second
	terminalPushCount    = 3
	terminalCleanupGrace = 60 * time.Second
)

var chainTracer = otel.Tracer("postwise/internal/server/chain")

type ChainHandler struct {
	Controller *chain.Controller
	Progress   progress.Store
	logger     *log.Logger
}

type startRequest struct {
	TimeFrame        string                  `json:"timeFrame"`
	AnchorDate       string                  `json:"anchorDate"`
	PlatformRequests []chain.PlatformRequest `json:"platformRequests"`
	CustomPrompt     string                  `json:"customPrompt"`
	OrganizationID   string                  `json:"organizationId"`
	ClientChainID    string                  `json:"clientChainId"`
}

type startResponse struct {
	ChainID  string `json:"chainId"`
	Accepted bool   `json:"accepted"`
}

// chainFrame is the wire shape of one progress update. Posts are only
// populated on terminal frames.
type chainFrame struct {
	ChainID      string         `json:"chainId"`
	Step         content.Step   `json:"step"`
	Progress     int            `json:"progress"`
	IsGenerating bool           `json:"isGenerating"`
	Error        string         `json:"error,omitempty"`
	Posts        []content.Post `json:"posts,omitempty"`
}

type resultResponse struct {
	chainFrame
	PartialResults content.PartialResults `json:"partialResults"`
}

func (h *ChainHandler) Register(g *echo.Group) {
	g.POST("/start", h.start)
	g.GET("/stream", h.stream)
	g.GET("/result", h.result)
}

// start validates the request and fires the chain; the pipeline runs
// detached and the caller follows it via the stream or result endpoints.
func (h *ChainHandler) start(c echo.Context) error {
	_, span := chainTracer.Start(c.Request().Context(), "ChainHandler.start")
	defer span.End()

	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	anchor, err := parseAnchorDate(req.AnchorDate)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !validTimeFrame(req.TimeFrame) {
		span.SetStatus(codes.Error, "invalid time frame")
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("timeFrame must be one of %s", strings.Join(schedule.TimeFrames, ", ")))
	}
	if strings.TrimSpace(req.OrganizationID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "organizationId required")
	}
	if len(req.PlatformRequests) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "platformRequests required")
	}
	for _, r := range req.PlatformRequests {
		if strings.TrimSpace(r.Platform) == "" || r.Count <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "each platform request needs a platform and a positive count")
		}
	}

	id := h.Controller.Start(chain.Params{
		ChainID:        strings.TrimSpace(req.ClientChainID),
		OrganizationID: req.OrganizationID,
		TimeFrame:      strings.ToLower(req.TimeFrame),
		AnchorDate:     anchor,
		Requests:       req.PlatformRequests,
		CustomPrompt:   req.CustomPrompt,
	})
	span.SetAttributes(attribute.String("chain_id", id))
	return c.JSON(http.StatusOK, startResponse{ChainID: id, Accepted: true})
}

// result is the synchronous fallback poll for callers that could not hold
// a stream open.
func (h *ChainHandler) result(c echo.Context) error {
	ctx, span := chainTracer.Start(c.Request().Context(), "ChainHandler.result")
	defer span.End()
	id := strings.TrimSpace(c.QueryParam("chainId"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chainId required")
	}
	span.SetAttributes(attribute.String("chain_id", id))
	st, ok, err := h.Progress.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": err.Error(), "chainId": id})
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chain not found")
	}
	return c.JSON(http.StatusOK, resultResponse{chainFrame: frameFromState(st), PartialResults: st.Partial})
}

// stream pushes state snapshots over Server-Sent Events until the chain
// reaches a terminal step. A snapshot goes out immediately on subscribe,
// even when the chain has not started yet; afterwards only changed
// (step, progress) pairs are pushed. The terminal frame is repeated a
// bounded number of times to tolerate message loss, then the stored state
// is cleaned up after a grace period.
func (h *ChainHandler) stream(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()
	id := strings.TrimSpace(c.QueryParam("chainId"))
	ctx, span := chainTracer.Start(ctx, "ChainHandler.stream")
	defer span.End()
	span.SetAttributes(attribute.String("chain_id", id))
	if id == "" {
		span.SetStatus(codes.Error, "chainId required")
		return echo.NewHTTPError(http.StatusBadRequest, "chainId required")
	}

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		span.SetStatus(codes.Error, "streaming unsupported")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	telemetry.StreamClients.Inc()
	defer telemetry.StreamClients.Dec()

	sendFrame := func(f chainFrame) error {
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// First frame goes out unconditionally so the client sees something
	// even before the chain's first snapshot lands in the store.
	lastStep, lastProgress := content.Step(""), -1
	st, found, err := h.Progress.Get(ctx, id)
	if err != nil {
		h.logger.Printf("stream %s: initial read failed: %v", id, err)
	}
	first := chainFrame{ChainID: id, Step: content.StepInitializing}
	if found {
		first = frameFromState(st)
		lastStep, lastProgress = st.Step, st.Progress
	}
	if err := sendFrame(first); err != nil {
		span.RecordError(err)
		return nil
	}
	terminalPushes := 0
	if found && st.Step.Terminal() {
		terminalPushes = 1
	}

	poll := time.NewTicker(streamPollInterval)
	defer poll.Stop()
	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			// Consumer went away; the background chain keeps running and
			// its final state stays retrievable via the result endpoint.
			return nil
		case <-keepAlive.C:
			if _, err := resp.Write([]byte(": keep-alive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-poll.C:
			st, found, err := h.Progress.Get(ctx, id)
			if err != nil {
				h.logger.Printf("stream %s: read failed: %v", id, err)
				continue
			}
			if !found {
				continue
			}
			if st.Step.Terminal() {
				if err := sendFrame(frameFromState(st)); err != nil {
					return nil
				}
				terminalPushes++
				if terminalPushes >= terminalPushCount {
					h.scheduleCleanup(id)
					return nil
				}
				continue
			}
			if st.Step == lastStep && st.Progress == lastProgress {
				continue
			}
			if err := sendFrame(frameFromState(st)); err != nil {
				return nil
			}
			lastStep, lastProgress = st.Step, st.Progress
		}
	}
}

// scheduleCleanup drops the stored chain state once the grace period for
// late pollers has passed.
func (h *ChainHandler) scheduleCleanup(id string) {
	time.AfterFunc(terminalCleanupGrace, func() {
		if err := h.Progress.Delete(context.Background(), id); err != nil {
			h.logger.Printf("cleanup %s: %v", id, err)
		}
	})
}

func frameFromState(st content.ChainState) chainFrame {
	f := chainFrame{
		ChainID:      st.ChainID,
		Step:         st.Step,
		Progress:     st.Progress,
		IsGenerating: st.IsGenerating,
		Error:        st.Error,
	}
	if st.Step.Terminal() {
		f.Posts = st.Partial.Final
	}
	return f
}

func validTimeFrame(tf string) bool {
	tf = strings.ToLower(strings.TrimSpace(tf))
	for _, v := range schedule.TimeFrames {
		if tf == v {
			return true
		}
	}
	return false
}

// parseAnchorDate accepts a plain date or a full RFC 3339 timestamp.
func parseAnchorDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("anchorDate required")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("anchorDate %q is not a date (want YYYY-MM-DD or RFC 3339)", s)
}
