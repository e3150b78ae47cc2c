package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noakmilo/qventory-relist/internal/utils"
)

type RelistMode string

const (
	ModeAuto   RelistMode = "auto"
	ModeManual RelistMode = "manual"
)

type RelistFrequency string

const (
	FrequencyDaily       RelistFrequency = "daily"
	FrequencyEvery3Days  RelistFrequency = "every_3_days"
	FrequencyWeekly      RelistFrequency = "weekly"
	FrequencyEvery10Days RelistFrequency = "every_10_days"
	FrequencyBiweekly    RelistFrequency = "biweekly"
	FrequencyEvery20Days RelistFrequency = "every_20_days"
	FrequencyMonthly     RelistFrequency = "monthly"
	FrequencyCustom      RelistFrequency = "custom"
)

// DefaultCustomIntervalDays applies when a custom frequency has no interval set.
const DefaultCustomIntervalDays = 7

type PriceDecreaseType string

const (
	PriceDecreaseFixed      PriceDecreaseType = "fixed"
	PriceDecreasePercentage PriceDecreaseType = "percentage"
)

type RunStatus string

const (
	// RunStatusRunning marks a history row whose attempt is still in flight.
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
	RunStatusSkipped RunStatus = "skipped"
)

// ExecStatus is the claim guard preventing overlapping scheduler ticks from
// dispatching the same rule twice while a run is still inside its delay window.
type ExecStatus string

const (
	ExecStatusIdle       ExecStatus = "idle"
	ExecStatusInProgress ExecStatus = "in_progress"
)

var (
	ErrRuleNotFound          = errors.New("relist rule not found")
	ErrInvalidMode           = errors.New("invalid relist mode")
	ErrInvalidFrequency      = errors.New("invalid relist frequency")
	ErrInvalidCustomInterval = errors.New("custom frequency requires a positive interval in days")
	ErrMissingModeConfig     = errors.New("rule config does not match its mode")
	ErrInvalidQuietHours     = errors.New("invalid quiet hours window")
	ErrInvalidPriceDecrease  = errors.New("invalid price decrease config")
	ErrRuleInProgress        = errors.New("relist rule already has an execution in progress")
)

// IntervalDays maps a frequency to its fixed day count. Custom frequencies use
// the rule's own interval.
func (f RelistFrequency) IntervalDays(customDays int) int {
	switch f {
	case FrequencyDaily:
		return 1
	case FrequencyEvery3Days:
		return 3
	case FrequencyWeekly:
		return 7
	case FrequencyEvery10Days:
		return 10
	case FrequencyBiweekly:
		return 14
	case FrequencyEvery20Days:
		return 20
	case FrequencyMonthly:
		return 30
	case FrequencyCustom:
		if customDays > 0 {
			return customDays
		}
		return DefaultCustomIntervalDays
	default:
		return 0
	}
}

func (f RelistFrequency) Valid() bool {
	return f.IntervalDays(1) > 0
}

// AutoRelistConfig is the auto-mode side of the rule variant, stored as jsonb.
type AutoRelistConfig struct {
	Frequency          RelistFrequency `json:"frequency"`
	CustomIntervalDays int             `json:"custom_interval_days,omitempty"`

	QuietHoursStart string `json:"quiet_hours_start,omitempty"` // "HH:MM"
	QuietHoursEnd   string `json:"quiet_hours_end,omitempty"`
	Timezone        string `json:"timezone,omitempty"`

	MinHoursSinceLastOrder  int  `json:"min_hours_since_last_order,omitempty"`
	CheckActiveReturns      bool `json:"check_active_returns"`
	RequirePositiveQuantity bool `json:"require_positive_quantity"`
	CheckDuplicateSKUs      bool `json:"check_duplicate_skus"`
	PauseOnError            bool `json:"pause_on_error"`
	MaxConsecutiveErrors    int  `json:"max_consecutive_errors,omitempty"`

	EnablePriceDecrease bool              `json:"enable_price_decrease"`
	PriceDecreaseType   PriceDecreaseType `json:"price_decrease_type,omitempty"`
	PriceDecreaseAmount *decimal.Decimal  `json:"price_decrease_amount,omitempty"`
	MinPrice            *decimal.Decimal  `json:"min_price,omitempty"`

	RunFirstRelistImmediately bool `json:"run_first_relist_immediately"`
}

func (c AutoRelistConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *AutoRelistConfig) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			b = []byte(s)
		} else {
			return fmt.Errorf("unsupported auto config column type %T", value)
		}
	}
	return json.Unmarshal(b, c)
}

// PendingChanges holds listing fields a manual relist should rewrite between
// withdraw and publish.
type PendingChanges struct {
	Price       *decimal.Decimal `json:"price,omitempty"`
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Condition   *string          `json:"condition,omitempty"`
}

func (p *PendingChanges) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.Price == nil && p.Title == nil && p.Description == nil && p.Quantity == nil && p.Condition == nil
}

// ManualRelistConfig is the manual-mode side of the rule variant, stored as jsonb.
type ManualRelistConfig struct {
	PendingChanges         *PendingChanges `json:"pending_changes,omitempty"`
	ApplyChanges           bool            `json:"apply_changes"`
	ManualTriggerRequested bool            `json:"manual_trigger_requested"`
}

func (c ManualRelistConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *ManualRelistConfig) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			b = []byte(s)
		} else {
			return fmt.Errorf("unsupported manual config column type %T", value)
		}
	}
	return json.Unmarshal(b, c)
}

type RelistRuleEntity struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	OfferID string `gorm:"type:varchar(100);not null" json:"offer_id"`
	SKU     string `gorm:"type:varchar(100);not null;index" json:"sku"`

	Mode         RelistMode          `gorm:"type:varchar(10);not null" json:"mode"`
	AutoConfig   *AutoRelistConfig   `gorm:"type:jsonb" json:"auto_config,omitempty"`
	ManualConfig *ManualRelistConfig `gorm:"type:jsonb" json:"manual_config,omitempty"`

	Enabled    bool       `gorm:"not null;default:true;index" json:"enabled"`
	ExecStatus ExecStatus `gorm:"type:varchar(20);not null;default:'idle'" json:"exec_status"`

	NextRunAt        *time.Time `gorm:"index" json:"next_run_at"`
	LastRunAt        *time.Time `json:"last_run_at"`
	LastRunStatus    *RunStatus `gorm:"type:varchar(20)" json:"last_run_status"`
	LastErrorMessage *string    `gorm:"type:text" json:"last_error_message"`

	RunCount          int `gorm:"not null;default:0" json:"run_count"`
	SuccessCount      int `gorm:"not null;default:0" json:"success_count"`
	ErrorCount        int `gorm:"not null;default:0" json:"error_count"`
	ConsecutiveErrors int `gorm:"not null;default:0" json:"consecutive_errors"`

	Histories []RelistHistoryEntity `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"histories,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RelistRuleEntity) TableName() string {
	return "relist_rules"
}

// Validate rejects a malformed rule before it is ever persisted.
func (r *RelistRuleEntity) Validate() error {
	switch r.Mode {
	case ModeAuto:
		if r.AutoConfig == nil || r.ManualConfig != nil {
			return ErrMissingModeConfig
		}
		cfg := r.AutoConfig
		if !cfg.Frequency.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidFrequency, cfg.Frequency)
		}
		if cfg.Frequency == FrequencyCustom && cfg.CustomIntervalDays < 0 {
			return ErrInvalidCustomInterval
		}
		if (cfg.QuietHoursStart == "") != (cfg.QuietHoursEnd == "") {
			return ErrInvalidQuietHours
		}
		if cfg.QuietHoursStart != "" {
			if _, _, err := utils.ParseClockTime(cfg.QuietHoursStart); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidQuietHours, err)
			}
			if _, _, err := utils.ParseClockTime(cfg.QuietHoursEnd); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidQuietHours, err)
			}
		}
		if cfg.EnablePriceDecrease {
			if cfg.PriceDecreaseType != PriceDecreaseFixed && cfg.PriceDecreaseType != PriceDecreasePercentage {
				return fmt.Errorf("%w: type %q", ErrInvalidPriceDecrease, cfg.PriceDecreaseType)
			}
			if cfg.PriceDecreaseAmount == nil || cfg.PriceDecreaseAmount.IsNegative() {
				return fmt.Errorf("%w: amount must be non-negative", ErrInvalidPriceDecrease)
			}
		}
	case ModeManual:
		if r.ManualConfig == nil || r.AutoConfig != nil {
			return ErrMissingModeConfig
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, r.Mode)
	}
	return nil
}

// IsDue reports whether the scheduler should dispatch this rule now.
func (r *RelistRuleEntity) IsDue(now time.Time) bool {
	if !r.Enabled {
		return false
	}
	switch r.Mode {
	case ModeAuto:
		return r.NextRunAt != nil && !r.NextRunAt.After(now)
	case ModeManual:
		return r.ManualConfig != nil && r.ManualConfig.ManualTriggerRequested
	}
	return false
}

// MaxConsecutiveErrorsOrDefault returns the configured pause threshold, falling
// back to the given default when the rule config leaves it unset.
func (r *RelistRuleEntity) MaxConsecutiveErrorsOrDefault(def int) int {
	if r.AutoConfig != nil && r.AutoConfig.MaxConsecutiveErrors > 0 {
		return r.AutoConfig.MaxConsecutiveErrors
	}
	return def
}
