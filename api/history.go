package api

import (
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/history"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

func (h *Handlers) ListHistory(ctx *fasthttp.RequestCtx) {
	limit := history.DefaultLimit
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		value, err := strconv.Atoi(string(raw))
		if err != nil || value <= 0 {
			utils.WriteError(ctx, fasthttp.StatusBadRequest, "Invalid limit: "+string(raw)+". Must be a positive integer")
			return
		}
		limit = history.NormalizeLimit(value)
	}

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	records, err := h.history.List(requestCtx, limit)
	if err != nil {
		h.logger.Error("Failed to list history", zap.Error(err))
		utils.WriteError(ctx, fasthttp.StatusInternalServerError, "Failed to load history")
		return
	}

	total, err := h.history.Count(requestCtx)
	if err != nil {
		total = len(records)
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(records),
		"total":   total,
		"records": records,
	})
}

func (h *Handlers) GetHistory(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	record, err := h.history.Get(requestCtx, id)
	if err != nil {
		h.writeHistoryError(ctx, id, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"success": true,
		"record":  record,
	})
}

func (h *Handlers) DeleteHistory(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.history.Delete(requestCtx, id); err != nil {
		h.writeHistoryError(ctx, id, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"success": true,
		"deleted": id,
	})
}

func (h *Handlers) writeHistoryError(ctx *fasthttp.RequestCtx, id string, err error) {
	if types.IsError(err, types.ErrHistoryNotFound) {
		utils.WriteError(ctx, fasthttp.StatusNotFound, "History record not found: "+id)
		return
	}

	h.logger.Error("History operation failed", zap.String("id", id), zap.Error(err))
	utils.WriteError(ctx, fasthttp.StatusInternalServerError, "History operation failed")
}
