package ipc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kartikbazzad/sharddb/internal/config"
	"github.com/kartikbazzad/sharddb/internal/logger"
	"github.com/kartikbazzad/sharddb/internal/types"
)

// Invoker runs one invocation to a terminal response.
type Invoker interface {
	Invoke(ctx context.Context, inv *types.Invocation) *types.Response
}

// Admin covers the non-invocation surface the server exposes to clients:
// runtime DDL compilation, catalog introspection, and counters.
type Admin interface {
	CompileProcedure(name, clauses string) error
	Catalog() []CatalogEntry
	Stats() types.Stats
	MetricsText() string
}

type Handler struct {
	invoker Invoker
	admin   Admin
	cfg     *config.Config
	logger  *logger.Logger
}

func NewHandler(invoker Invoker, admin Admin, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		invoker: invoker,
		admin:   admin,
		cfg:     cfg,
		logger:  log,
	}
}

func (h *Handler) Handle(ctx context.Context, frame *RequestFrame) *ResponseFrame {
	response := &ResponseFrame{
		RequestID: frame.RequestID,
	}

	switch frame.Command {
	case CmdInvoke:
		h.handleInvoke(ctx, frame, response)

	case CmdCompile:
		var body CompileBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			fail(response, types.StatusGracefulFailure, "invalid compile body: "+err.Error())
			return response
		}
		if err := h.admin.CompileProcedure(body.Procedure, body.Clauses); err != nil {
			fail(response, types.StatusGracefulFailure, err.Error())
			return response
		}
		succeed(response, nil)

	case CmdCatalog:
		data, err := json.Marshal(h.admin.Catalog())
		if err != nil {
			fail(response, types.StatusUnexpectedFailure, err.Error())
			return response
		}
		succeed(response, data)

	case CmdStats:
		data, err := json.Marshal(h.admin.Stats())
		if err != nil {
			fail(response, types.StatusUnexpectedFailure, err.Error())
			return response
		}
		succeed(response, data)

	case CmdMetrics:
		succeed(response, []byte(h.admin.MetricsText()))

	default:
		fail(response, types.StatusGracefulFailure, "unknown command")
	}

	return response
}

func (h *Handler) handleInvoke(ctx context.Context, frame *RequestFrame, response *ResponseFrame) {
	var body InvokeBody
	if err := json.Unmarshal(frame.Body, &body); err != nil {
		fail(response, types.StatusGracefulFailure, "invalid invoke body: "+err.Error())
		return
	}
	if body.Procedure == "" {
		fail(response, types.StatusGracefulFailure, "missing procedure name")
		return
	}

	inv := &types.Invocation{
		ID:        frame.InvocationID,
		Procedure: body.Procedure,
		Args:      body.Args,
		Role:      body.Role,
	}
	if body.TimeoutMS > 0 {
		inv.Deadline = time.Now().Add(time.Duration(body.TimeoutMS) * time.Millisecond)
	}

	if h.cfg.IPC.DebugMode {
		h.logger.Debug("Invoke %s id=%s args=%d", inv.Procedure, inv.ID, len(inv.Args))
	}

	start := time.Now()
	resp := h.invoker.Invoke(ctx, inv)
	resp.ClusterRoundtrip = time.Since(start)

	data, err := EncodeResponseBody(resp)
	if err != nil {
		fail(response, types.StatusUnexpectedFailure, err.Error())
		return
	}

	response.Status = resp.Status
	response.Body = data
}

func fail(response *ResponseFrame, status types.StatusCode, message string) {
	resp := types.NewResponse(status)
	resp.StatusString = message
	data, err := EncodeResponseBody(resp)
	if err != nil {
		data = []byte(message)
	}
	response.Status = status
	response.Body = data
}

func succeed(response *ResponseFrame, data []byte) {
	response.Status = types.StatusSuccess
	response.Body = data
}
