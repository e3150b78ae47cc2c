package models

import "time"

type GetRelistRuleParam struct {
	IDs     []uint      `json:"ids"`
	UserID  *uint       `json:"user_id"`
	SKUs    []string    `json:"skus"`
	Mode    *RelistMode `json:"mode"`
	Enabled *bool       `json:"enabled"`
	Limit   *int        `json:"limit"`
}

type GetDueRulesParam struct {
	Now   time.Time `json:"now"`
	Limit int       `json:"limit"`
}

type GetRelistHistoryParam struct {
	RuleID *uint      `json:"rule_id"`
	UserID *uint      `json:"user_id"`
	Status *RunStatus `json:"status"`
	Since  *time.Time `json:"since"`
	Limit  *int       `json:"limit"`
}

type CreateRelistRuleRequest struct {
	UserID       uint                `json:"user_id" binding:"required"`
	OfferID      string              `json:"offer_id" binding:"required"`
	SKU          string              `json:"sku" binding:"required"`
	Mode         RelistMode          `json:"mode" binding:"required"`
	AutoConfig   *AutoRelistConfig   `json:"auto_config,omitempty"`
	ManualConfig *ManualRelistConfig `json:"manual_config,omitempty"`
	Enabled      *bool               `json:"enabled"`
}

type UpdateRelistRuleRequest struct {
	OfferID      *string             `json:"offer_id,omitempty"`
	SKU          *string             `json:"sku,omitempty"`
	AutoConfig   *AutoRelistConfig   `json:"auto_config,omitempty"`
	ManualConfig *ManualRelistConfig `json:"manual_config,omitempty"`
	Enabled      *bool               `json:"enabled,omitempty"`
}

// Error Response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ExecutionResult is the per-rule outcome returned by run_due_rules and by a
// synchronous manual trigger.
type ExecutionResult struct {
	RuleID       uint      `json:"rule_id"`
	AttemptID    string    `json:"attempt_id"`
	Status       RunStatus `json:"status"`
	NewListingID string    `json:"new_listing_id,omitempty"`
	SkipReason   string    `json:"skip_reason,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}
