package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/intelflow/types"
	"github.com/BaSui01/intelflow/workflow"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// =============================================================================
// 🌐 运行事件流 Handler
// =============================================================================

// eventWriteTimeout 单条事件的写超时。客户端读不动就断开，
// 由客户端自行重连；广播器侧的慢订阅者丢弃另行兜底。
const eventWriteTimeout = 5 * time.Second

// eventSubscribeBuffer 每个 WebSocket 订阅者的事件缓冲。
const eventSubscribeBuffer = 64

// EventsHandler 把一个运行的生命周期事件流推给 WebSocket 客户端：
// 每次焦点状态迁移一条，终局一条 run_finished，随后正常关闭。
type EventsHandler struct {
	registry *workflow.Registry
	events   *workflow.Broadcaster
	logger   *zap.Logger
}

// NewEventsHandler 创建运行事件流处理器
func NewEventsHandler(registry *workflow.Registry, events *workflow.Broadcaster, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		registry: registry,
		events:   events,
		logger:   logger,
	}
}

// HandleEvents 处理运行事件流订阅
// @Summary 订阅运行事件
// @Description 升级为 WebSocket 并按发生顺序推送运行事件，运行终结后关闭
// @Tags 运行
// @Param id path string true "运行 ID"
// @Success 101 {string} string "协议切换"
// @Failure 404 {object} Response "运行不存在"
// @Security ApiKeyAuth
// @Router /api/v1/runs/{id}/events [get]
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, ok := h.registry.Get(id)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrRunNotFound,
			"run not found or already evicted: "+id, h.logger)
		return
	}

	// 升级前先订阅，避免在查询与订阅之间漏掉终局事件。
	events, cancel := h.events.Subscribe(eventSubscribeBuffer)
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// 跨域控制在外层 CORS 中间件，这里放行全部 Origin。
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed",
			zap.String("run_id", id), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// 只写不读：CloseRead 吃掉入站帧并在客户端断开时取消 ctx。
	ctx := conn.CloseRead(r.Context())

	h.logger.Debug("event subscriber connected", zap.String("run_id", id))

	// 已终结的运行补发一条终局事件再正常关闭，晚到的订阅者拿到
	// 一致的收尾语义。
	if status := run.Status(); status != types.RunInProgress {
		ev := workflow.Event{
			RunID:  id,
			Type:   workflow.EventRunFinished,
			Status: status,
			At:     run.FinishedAt(),
		}
		if err := h.writeEvent(ctx, conn, ev); err == nil {
			conn.Close(websocket.StatusNormalClosure, "run already finished")
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("event subscriber disconnected", zap.String("run_id", id))
			return
		case ev, open := <-events:
			if !open {
				conn.Close(websocket.StatusNormalClosure, "event stream closed")
				return
			}
			if ev.RunID != id {
				continue
			}
			if err := h.writeEvent(ctx, conn, ev); err != nil {
				h.logger.Debug("event write failed, dropping subscriber",
					zap.String("run_id", id), zap.Error(err))
				return
			}
			if ev.Type == workflow.EventRunFinished {
				conn.Close(websocket.StatusNormalClosure, "run finished")
				return
			}
		}
	}
}

func (h *EventsHandler) writeEvent(ctx context.Context, conn *websocket.Conn, ev workflow.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}
