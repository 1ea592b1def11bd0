package handler

import (
	"github.com/gin-gonic/gin"
	investmentapp "github.com/tffhost/backend/internal/application/investment"
	"github.com/tffhost/backend/internal/domain/investment"
	"github.com/tffhost/backend/internal/interfaces/http/middleware"
)

// AgreementHandler handles the investment agreement endpoints
type AgreementHandler struct {
	BaseHandler
	agreements *investmentapp.Service
}

// NewAgreementHandler creates a new AgreementHandler
func NewAgreementHandler(agreements *investmentapp.Service) *AgreementHandler {
	return &AgreementHandler{agreements: agreements}
}

// CreateAgreement godoc
// @ID           createAgreement
// @Summary      Create a token purchase agreement
// @Tags         agreements
// @Accept       json
// @Produce      json
// @Param        request body investmentapp.CreateAgreementRequest true "Agreement"
// @Success      201 {object} APIResponse[investmentapp.AgreementResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /agreements [post]
func (h *AgreementHandler) CreateAgreement(c *gin.Context) {
	var req investmentapp.CreateAgreementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agreement, err := h.agreements.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, agreement)
}

// GetAgreement godoc
// @ID           getAgreement
// @Summary      Get an agreement
// @Tags         agreements
// @Produce      json
// @Param        id path string true "Agreement ID" format(uuid)
// @Success      200 {object} APIResponse[investmentapp.AgreementResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /agreements/{id} [get]
func (h *AgreementHandler) GetAgreement(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	agreement, err := h.agreements.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, agreement)
}

// ListAgreements godoc
// @ID           listAgreements
// @Summary      List agreements
// @Tags         agreements
// @Produce      json
// @Param        status    query int false "Agreement status"
// @Param        page      query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]investmentapp.AgreementResponse]
// @Router       /agreements [get]
func (h *AgreementHandler) ListAgreements(c *gin.Context) {
	var filter investmentapp.AgreementListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	result, err := h.agreements.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// ListMyAgreements godoc
// @ID           listMyAgreements
// @Summary      List the agreements of the signed-in user
// @Tags         me
// @Produce      json
// @Success      200 {object} APIResponse[[]investmentapp.AgreementResponse]
// @Router       /me/agreements [get]
func (h *AgreementHandler) ListMyAgreements(c *gin.Context) {
	agreements, err := h.agreements.ListForUser(c.Request.Context(), middleware.GetUsername(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, agreements)
}

// UpdateAgreementStatus godoc
// @ID           updateAgreementStatus
// @Summary      Sign or cancel an agreement
// @Tags         agreements
// @Accept       json
// @Produce      json
// @Param        id      path string                             true "Agreement ID" format(uuid)
// @Param        request body investmentapp.UpdateStatusRequest true "Status"
// @Success      200 {object} APIResponse[investmentapp.AgreementResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /agreements/{id}/status [put]
func (h *AgreementHandler) UpdateAgreementStatus(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	var req investmentapp.UpdateStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agreement, err := h.agreements.UpdateStatus(c.Request.Context(), id, investment.AgreementStatus(*req.Status))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, agreement)
}

// AgreementSignResult godoc
// @ID           agreementSignResult
// @Summary      Record the outcome of the agreement sign flow
// @Tags         agreements
// @Accept       json
// @Produce      json
// @Param        id      path string                           true "Agreement ID" format(uuid)
// @Param        request body investmentapp.SignResultRequest true "Sign result"
// @Success      200 {object} APIResponse[investmentapp.AgreementResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /agreements/{id}/sign-result [post]
func (h *AgreementHandler) AgreementSignResult(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	var req investmentapp.SignResultRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agreement, err := h.agreements.SignResult(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, agreement)
}

// MarkAgreementPaid godoc
// @ID           markAgreementPaid
// @Summary      Mark a signed agreement as paid
// @Tags         agreements
// @Produce      json
// @Param        id path string true "Agreement ID" format(uuid)
// @Success      200 {object} APIResponse[investmentapp.AgreementResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /agreements/{id}/paid [post]
func (h *AgreementHandler) MarkAgreementPaid(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	agreement, err := h.agreements.MarkPaid(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, agreement)
}

// UploadAgreementDocument godoc
// @ID           uploadAgreementDocument
// @Summary      Upload the signed agreement document
// @Description  The document is a data:application/pdf;base64 URL
// @Tags         agreements
// @Accept       json
// @Produce      json
// @Param        id      path string                               true "Agreement ID" format(uuid)
// @Param        request body investmentapp.UploadDocumentRequest true "Document"
// @Success      200 {object} APIResponse[investmentapp.AgreementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Router       /agreements/{id}/document [put]
func (h *AgreementHandler) UploadAgreementDocument(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	var req investmentapp.UploadDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agreement, err := h.agreements.UploadDocument(c.Request.Context(), id, req.Document)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, agreement)
}

// GetAgreementDocument godoc
// @ID           getAgreementDocument
// @Summary      Get a download link of the agreement document
// @Tags         agreements
// @Produce      json
// @Param        id path string true "Agreement ID" format(uuid)
// @Success      200 {object} APIResponse[URLData]
// @Failure      404 {object} ErrorResponse
// @Router       /agreements/{id}/document [get]
func (h *AgreementHandler) GetAgreementDocument(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	url, err := h.agreements.DocumentURL(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, URLData{URL: url})
}
