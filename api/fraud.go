package api

import (
	"github.com/valyala/fasthttp"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/fraud"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

func (h *Handlers) PredictFraud(ctx *fasthttp.RequestCtx) {
	request, err := fraud.ParseRequest(ctx.PostBody())
	if err != nil {
		if types.IsError(err, types.ErrValidation) {
			utils.WriteError(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
		utils.WriteError(ctx, fasthttp.StatusInternalServerError, "Prediction failed: "+err.Error())
		return
	}

	requestCtx, cancel := requestContext(ctx)
	defer cancel()

	response, err := h.detector.Predict(requestCtx, request)
	if err != nil {
		utils.WriteError(ctx, fasthttp.StatusInternalServerError, "Prediction failed: "+err.Error())
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, response)
}
