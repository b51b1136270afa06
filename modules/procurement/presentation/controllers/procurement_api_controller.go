package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/InfradynAB/procure-sdk/modules/procurement/changeset"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/boqitem"
	"github.com/InfradynAB/procure-sdk/modules/procurement/services"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
	"github.com/InfradynAB/procure-sdk/pkg/httpapi"
	"github.com/InfradynAB/procure-sdk/pkg/middleware"
)

type ProcurementAPIController struct {
	changeOrders *services.ChangeOrderService
	quantities   *services.QuantityService
	instructions *services.InstructionService
	apiPrefix    string
}

func NewProcurementAPIController(
	changeOrders *services.ChangeOrderService,
	quantities *services.QuantityService,
	instructions *services.InstructionService,
) *ProcurementAPIController {
	return &ProcurementAPIController{
		changeOrders: changeOrders,
		quantities:   quantities,
		instructions: instructions,
		apiPrefix:    "/procurement/api",
	}
}

func (c *ProcurementAPIController) Key() string {
	return c.apiPrefix
}

func (c *ProcurementAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()
	api.Use(middleware.ProvideIdentity())

	api.HandleFunc("/change-orders", c.SubmitChangeOrder).Methods(http.MethodPost)
	api.HandleFunc("/change-orders/pending", c.GetPendingChangeOrders).Methods(http.MethodGet)
	api.HandleFunc("/change-orders/impact-summary", c.GetCOImpactSummary).Methods(http.MethodGet)
	api.HandleFunc("/change-orders/{id}:review", c.ReviewChangeOrder).Methods(http.MethodPost)
	api.HandleFunc("/change-orders/{id}:approve", c.ApproveChangeOrder).Methods(http.MethodPost)
	api.HandleFunc("/change-orders/{id}:reject", c.RejectChangeOrder).Methods(http.MethodPost)

	api.HandleFunc("/variation-orders", c.CreateVariationOrder).Methods(http.MethodPost)
	api.HandleFunc("/de-scopes", c.CreateDeScope).Methods(http.MethodPost)
	api.HandleFunc("/price-amendments", c.CreatePriceAmendment).Methods(http.MethodPost)

	api.HandleFunc("/boq-items/{id}:deliver", c.UpdateQuantityDelivered).Methods(http.MethodPost)
	api.HandleFunc("/boq-items/{id}:install", c.UpdateQuantityInstalled).Methods(http.MethodPost)
	api.HandleFunc("/boq-items/{id}:certify", c.CertifyQuantity).Methods(http.MethodPost)

	api.HandleFunc("/client-instructions", c.CreateClientInstruction).Methods(http.MethodPost)
	api.HandleFunc("/client-instructions/{id}", c.GetClientInstruction).Methods(http.MethodGet)

	api.HandleFunc("/projects/{id}/net-contract-summary", c.GetNetContractSummary).Methods(http.MethodGet)
}

type submitChangeOrderRequest struct {
	PurchaseOrderID      uuid.UUID       `json:"purchase_order_id"`
	Reason               string          `json:"reason"`
	AmountDelta          decimal.Decimal `json:"amount_delta"`
	ScheduleImpactDays   int             `json:"schedule_impact_days"`
	AffectedMilestoneIDs []uuid.UUID     `json:"affected_milestone_ids"`
	ClientInstructionID  *uuid.UUID      `json:"client_instruction_id"`
}

func (c *ProcurementAPIController) SubmitChangeOrder(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	var req submitChangeOrderRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_BODY", "invalid json body")
		return
	}

	co, err := c.changeOrders.SubmitChangeOrder(r.Context(), services.SubmitChangeOrderInput{
		PurchaseOrderID:      req.PurchaseOrderID,
		Reason:               req.Reason,
		AmountDelta:          req.AmountDelta,
		ScheduleImpactDays:   req.ScheduleImpactDays,
		AffectedMilestoneIDs: req.AffectedMilestoneIDs,
		ClientInstructionID:  req.ClientInstructionID,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, co)
}

func (c *ProcurementAPIController) GetPendingChangeOrders(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	var poID *uuid.UUID
	if raw := r.URL.Query().Get("purchase_order_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_QUERY", "purchase_order_id is invalid")
			return
		}
		poID = &id
	}

	rows, err := c.changeOrders.GetPendingChangeOrders(r.Context(), poID)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"change_orders": rows})
}

func (c *ProcurementAPIController) GetCOImpactSummary(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	var projectID, poID *uuid.UUID
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_QUERY", "project_id is invalid")
			return
		}
		projectID = &id
	}
	if raw := r.URL.Query().Get("purchase_order_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_QUERY", "purchase_order_id is invalid")
			return
		}
		poID = &id
	}

	summary, err := c.changeOrders.GetCOImpactSummary(r.Context(), projectID, poID)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (c *ProcurementAPIController) ReviewChangeOrder(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	co, err := c.changeOrders.ReviewChangeOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, co)
}

type approveChangeOrderRequest struct {
	Notes *string `json:"notes"`
}

func (c *ProcurementAPIController) ApproveChangeOrder(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	var req approveChangeOrderRequest
	if err := decodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_BODY", "invalid json body")
		return
	}

	co, err := c.changeOrders.ApproveChangeOrder(r.Context(), services.ApproveChangeOrderInput{
		ChangeOrderID: id,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, co)
}

type rejectChangeOrderRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

func (c *ProcurementAPIController) RejectChangeOrder(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	var req rejectChangeOrderRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_BODY", "invalid json body")
		return
	}

	co, err := c.changeOrders.RejectChangeOrder(r.Context(), services.RejectChangeOrderInput{
		ChangeOrderID:   id,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, co)
}

type variationOrderRequest struct {
	changeset.AdditionRequest
	Reason              string     `json:"reason"`
	ClientInstructionID *uuid.UUID `json:"client_instruction_id"`
}

func (c *ProcurementAPIController) CreateVariationOrder(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	var req variationOrderRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_BODY", "invalid json body")
		return
	}

	co, err := c.changeOrders.CreateVariationOrder(r.Context(), services.VariationOrderInput{
		Request:             req.AdditionRequest,
		Reason:              req.Reason,
		ClientInstructionID: req.ClientInstructionID,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, co)
}

type deScopeRequest struct {
	changeset.OmissionRequest
	Reason              string     `json:"reason"`
	ClientInstructionID *uuid.UUID `json:"client_instruction_id"`
}

func (c *ProcurementAPIController) CreateDeScope(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	var req deScopeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_BODY", "invalid json body")
		return
	}

	co, err := c.changeOrders.CreateDeScope(r.Context(), services.DeScopeInput{
		Request:             req.OmissionRequest,
		Reason:              req.Reason,
		ClientInstructionID: req.ClientInstructionID,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, co)
}

type priceAmendmentRequest struct {
	changeset.AmendmentRequest
	Reason              string     `json:"reason"`
	ClientInstructionID *uuid.UUID `json:"client_instruction_id"`
}

func (c *ProcurementAPIController) CreatePriceAmendment(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	var req priceAmendmentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_BODY", "invalid json body")
		return
	}

	co, err := c.changeOrders.CreatePriceAmendment(r.Context(), services.PriceAmendmentInput{
		Request:             req.AmendmentRequest,
		Reason:              req.Reason,
		ClientInstructionID: req.ClientInstructionID,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, co)
}

type quantityUpdateRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

func (c *ProcurementAPIController) UpdateQuantityDelivered(w http.ResponseWriter, r *http.Request) {
	c.updateQuantity(w, r, c.quantities.UpdateQuantityDelivered)
}

func (c *ProcurementAPIController) UpdateQuantityInstalled(w http.ResponseWriter, r *http.Request) {
	c.updateQuantity(w, r, c.quantities.UpdateQuantityInstalled)
}

func (c *ProcurementAPIController) CertifyQuantity(w http.ResponseWriter, r *http.Request) {
	c.updateQuantity(w, r, c.quantities.CertifyQuantity)
}

func (c *ProcurementAPIController) updateQuantity(
	w http.ResponseWriter,
	r *http.Request,
	update func(ctx context.Context, in services.QuantityUpdateInput) (*boqitem.BOQItem, error),
) {
	requestID := composables.UseRequestID(r.Context())

	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	var req quantityUpdateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_BODY", "invalid json body")
		return
	}

	item, err := update(r.Context(), services.QuantityUpdateInput{
		BOQItemID: id,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type createClientInstructionRequest struct {
	ProjectID     uuid.UUID `json:"project_id"`
	Reference     string    `json:"reference"`
	Kind          string    `json:"kind"`
	Title         string    `json:"title"`
	AttachmentRef string    `json:"attachment_ref"`
}

func (c *ProcurementAPIController) CreateClientInstruction(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	var req createClientInstructionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_BODY", "invalid json body")
		return
	}

	ci, err := c.instructions.CreateClientInstruction(r.Context(), services.CreateClientInstructionInput{
		ProjectID:     req.ProjectID,
		Reference:     req.Reference,
		Kind:          req.Kind,
		Title:         req.Title,
		AttachmentRef: req.AttachmentRef,
	})
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, ci)
}

func (c *ProcurementAPIController) GetClientInstruction(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	ci, err := c.instructions.GetClientInstruction(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, ci)
}

func (c *ProcurementAPIController) GetNetContractSummary(w http.ResponseWriter, r *http.Request) {
	requestID := composables.UseRequestID(r.Context())

	id, ok := pathUUID(w, r, requestID)
	if !ok {
		return
	}
	summary, err := c.changeOrders.GetNetContractSummary(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func pathUUID(w http.ResponseWriter, r *http.Request, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "PROC_INVALID_QUERY", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string) {
	meta := map[string]string{}
	if requestID != "" {
		meta["request_id"] = requestID
	}
	_ = httpapi.WriteError(w, status, code, message, meta)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.Status >= http.StatusInternalServerError {
			composables.UseLogger(r.Context()).WithError(err).Error("procurement api request failed")
		}
		writeAPIError(w, svcErr.Status, requestID, svcErr.Code, svcErr.Message)
		return
	}
	composables.UseLogger(r.Context()).WithError(err).Error("procurement api request failed")
	writeAPIError(w, http.StatusInternalServerError, requestID, "PROC_INTERNAL", err.Error())
}
