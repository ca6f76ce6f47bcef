package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/daviddao/casedesk/internal/filter"
	"github.com/daviddao/casedesk/internal/model"
)

// Classify submits a new case and returns the backend's classification.
func (c *Client) Classify(ctx context.Context, req model.ClassifyRequest) (model.Classification, error) {
	const op = "classify"
	var out model.Classification
	if err := req.Validate(); err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	data, err := c.do(ctx, op, http.MethodPost, "/classify-case", nil, req)
	if err != nil {
		return out, err
	}
	if err := decode(op, data, &out); err != nil {
		return out, err
	}
	return out, nil
}

// FilterCases lists cases matching the server-side part of the criteria.
// The search text is not sent; callers narrow the result with
// filter.Criteria.Apply.
func (c *Client) FilterCases(ctx context.Context, crit filter.Criteria) ([]model.Case, error) {
	const op = "filter cases"
	data, err := c.do(ctx, op, http.MethodGet, "/cases/filter", crit.Query(), nil)
	if err != nil {
		return nil, err
	}
	cases := []model.Case{}
	if err := decode(op, data, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// ListCases returns every case, newest first.
func (c *Client) ListCases(ctx context.Context) ([]model.Case, error) {
	const op = "list cases"
	data, err := c.do(ctx, op, http.MethodGet, "/cases", nil, nil)
	if err != nil {
		return nil, err
	}
	cases := []model.Case{}
	if err := decode(op, data, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// Resolve marks a case as resolved.
func (c *Client) Resolve(ctx context.Context, id int64) (model.ActionResult, error) {
	return c.act(ctx, model.ActionResolve, http.MethodPatch, id)
}

// Escalate bumps a case's escalation level.
func (c *Client) Escalate(ctx context.Context, id int64) (model.ActionResult, error) {
	return c.act(ctx, model.ActionEscalate, http.MethodPatch, id)
}

// RequestVerification asks the submitter to verify their identity.
func (c *Client) RequestVerification(ctx context.Context, id int64) (model.ActionResult, error) {
	return c.act(ctx, model.ActionVerify, http.MethodPost, id)
}

// Do dispatches a per-row action by name.
func (c *Client) Do(ctx context.Context, action model.Action, id int64) (model.ActionResult, error) {
	switch action {
	case model.ActionResolve:
		return c.Resolve(ctx, id)
	case model.ActionEscalate:
		return c.Escalate(ctx, id)
	case model.ActionVerify:
		return c.RequestVerification(ctx, id)
	}
	return model.ActionResult{}, fmt.Errorf("unknown action %q", action)
}

func (c *Client) act(ctx context.Context, action model.Action, method string, id int64) (model.ActionResult, error) {
	op := fmt.Sprintf("%s case %d", action, id)
	data, err := c.do(ctx, op, method, fmt.Sprintf("/cases/%d/%s", id, action), nil, nil)
	if err != nil {
		return model.ActionResult{}, err
	}
	return decodeActionResult(op, data)
}

// decodeActionResult handles the three shapes the mutating endpoints use:
// the updated case, a {message, status|escalation_level} object, or nothing.
func decodeActionResult(op string, data []byte) (model.ActionResult, error) {
	var res model.ActionResult
	if len(bytes.TrimSpace(data)) == 0 {
		return res, nil
	}
	if !gjson.ValidBytes(data) {
		return res, fmt.Errorf("%s: decode response: invalid JSON", op)
	}
	if gjson.GetBytes(data, "id").Exists() {
		var cs model.Case
		if err := json.Unmarshal(data, &cs); err != nil {
			return res, fmt.Errorf("%s: decode response: %w", op, err)
		}
		res.Case = &cs
		res.Status = cs.Status
		res.EscalationLevel = cs.EscalationLevel
		return res, nil
	}
	res.Message = gjson.GetBytes(data, "message").String()
	res.Status = model.Status(gjson.GetBytes(data, "status").String())
	res.EscalationLevel = int(gjson.GetBytes(data, "escalation_level").Int())
	return res, nil
}
