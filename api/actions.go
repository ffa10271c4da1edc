/*
Copyright 2026 TradeFlow Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	model2 "github.com/tradeflowhq/tradeflow/api/model"
	"github.com/tradeflowhq/tradeflow/internal/apierror"
	"github.com/tradeflowhq/tradeflow/model"
)

// ProposeAction registers a new confirmable action for a session and
// returns the pending record whose preview the assistant shows the user.
// Re-proposing an equivalent action returns the existing record, so the
// endpoint is safe to call once per rendered preview.
func (a Api) ProposeAction(c *gin.Context) {
	var newAction model2.ProposeAction
	if err := c.ShouldBindJSON(&newAction); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := newAction.ValidateProposeAction(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	req, err := newAction.ToRegisterIntentRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.tradeflow.ProposeAction(c.Request.Context(), req)
	if err != nil {
		logrus.Error(err)
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetAction returns a single pending action by id.
func (a Api) GetAction(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /actions/:id"})
		return
	}

	resp, err := a.tradeflow.GetIntentByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ConfirmAction confirms one pending action by explicit id. The side
// effect runs through the operation registered for the record's
// operation_name; the outcome mirrors the state machine's verdict.
func (a Api) ConfirmAction(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /actions/:id/confirm"})
		return
	}

	a.confirmByID(c, id)
}

// ConfirmSession confirms "the one pending action" of a kind in a session.
// With several candidates the response lists them and the client must
// re-submit against an explicit id.
func (a Api) ConfirmSession(c *gin.Context) {
	sessionID, passed := c.Params.Get("session_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required. pass it in the route /sessions/:session_id/confirm"})
		return
	}

	var body model2.ConfirmSession
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if err := body.ValidateConfirmSession(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	candidates, err := a.tradeflow.ResolveCandidates(c.Request.Context(), sessionID, body.ActionKind)
	if err != nil {
		logrus.Error(err)
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	switch len(candidates) {
	case 0:
		c.JSON(http.StatusNotFound, model.ConfirmationOutcome{Result: model.OutcomeNonePending})
	case 1:
		a.confirmByID(c, candidates[0].IntentID)
	default:
		c.JSON(http.StatusConflict, model.ConfirmationOutcome{Result: model.OutcomeAmbiguous, Candidates: candidates})
	}
}

// confirmByID resolves the record's operation and drives the confirmation
// through the state machine.
func (a Api) confirmByID(c *gin.Context, id string) {
	intent, err := a.tradeflow.GetIntentByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	operation, err := a.operations.Resolve(intent.OperationName)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	outcome, err := a.tradeflow.ConfirmIntent(c.Request.Context(), id, operation.Execute)
	if err != nil {
		logrus.Error(err)
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(statusForOutcome(outcome), outcome)
}

// CancelAction cancels a still-pending action.
func (a Api) CancelAction(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /actions/:id/cancel"})
		return
	}

	var body model2.CancelAction
	// body is optional on cancel
	_ = c.ShouldBindJSON(&body)

	cancelled, err := a.tradeflow.CancelPendingAction(c.Request.Context(), id, body.Notes)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "action is no longer pending"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// ListSessionActions lists a session's actions for audit surfaces.
func (a Api) ListSessionActions(c *gin.Context) {
	sessionID, passed := c.Params.Get("session_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	resp, err := a.tradeflow.ListSessionIntents(c.Request.Context(), sessionID, c.Query("status"), c.Query("action_kind"), 50)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ResolveCandidates lists the still-confirmable actions of a kind so the
// assistant can render "N pending actions, which one?" prompts.
func (a Api) ResolveCandidates(c *gin.Context) {
	sessionID, passed := c.Params.Get("session_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	resp, err := a.tradeflow.ResolveCandidates(c.Request.Context(), sessionID, c.Query("action_kind"))
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func statusForOutcome(outcome *model.ConfirmationOutcome) int {
	switch outcome.Result {
	case model.OutcomeSucceeded:
		return http.StatusOK
	case model.OutcomeNonePending:
		return http.StatusNotFound
	case model.OutcomeAmbiguous:
		return http.StatusConflict
	case model.OutcomeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusConflict
	}
}
