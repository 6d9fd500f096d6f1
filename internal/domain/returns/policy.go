package returns

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/returnhub/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ReasonCode identifies why a customer wants to return a line item
type ReasonCode string

const (
	ReasonDamagedDefective ReasonCode = "DAMAGED_DEFECTIVE"
	ReasonWrongItem        ReasonCode = "WRONG_ITEM"
	ReasonNotAsDescribed   ReasonCode = "NOT_AS_DESCRIBED"
	ReasonChangedMind      ReasonCode = "CHANGED_MIND"
	ReasonBetterPrice      ReasonCode = "BETTER_PRICE"
	ReasonNoLongerNeeded   ReasonCode = "NO_LONGER_NEEDED"
	ReasonOther            ReasonCode = "OTHER"
)

// IsValid checks if the reason code is known
func (r ReasonCode) IsValid() bool {
	switch r {
	case ReasonDamagedDefective, ReasonWrongItem, ReasonNotAsDescribed,
		ReasonChangedMind, ReasonBetterPrice, ReasonNoLongerNeeded, ReasonOther:
		return true
	}
	return false
}

// String returns the string representation of the reason code
func (r ReasonCode) String() string {
	return string(r)
}

// RuleEffect describes what a matched policy rule does to an item's
// return-fee contribution and eligibility
type RuleEffect struct {
	// Block forbids returning the item regardless of reason (e.g. final sale)
	Block bool `json:"block,omitempty"`
	// ManualReview forces a human decision even when the amount is under the
	// auto-approval ceiling
	ManualReview bool `json:"manual_review,omitempty"`
	// FeeFlat is a fixed restocking fee added once per matched item
	FeeFlat decimal.Decimal `json:"fee_flat"`
	// FeePercent is a fee as a percentage of the item's refund contribution
	FeePercent decimal.Decimal `json:"fee_percent"`
	// DiscountPercent reduces the refund contribution (e.g. used-condition haircut)
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// PolicyRule is one tenant-configured condition-action pair. Rules are
// evaluated in ascending Priority; the first rule whose conditions match an
// item wins for that item. Ties are broken by insertion order.
type PolicyRule struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
	// Reasons restricts the rule to these reason codes; empty matches any
	Reasons []ReasonCode `json:"reasons,omitempty"`
	// ProductTags restricts the rule to items carrying at least one of these
	// tags (e.g. "final-sale"); empty matches any
	ProductTags []string   `json:"product_tags,omitempty"`
	Effect      RuleEffect `json:"effect"`
}

// Matches reports whether the rule applies to the given item
func (pr *PolicyRule) Matches(item *ReturnLineItem) bool {
	if len(pr.Reasons) > 0 {
		found := false
		for _, r := range pr.Reasons {
			if r == item.Reason {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(pr.ProductTags) > 0 {
		found := false
		for _, want := range pr.ProductTags {
			for _, have := range item.Tags {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// PolicySnapshot is the tenant return policy as it stood when a submission
// was evaluated. It is persisted verbatim alongside the resulting request so
// historical requests stay auditable against the rules that actually applied.
type PolicySnapshot struct {
	Currency valueobject.Currency `json:"currency"`
	// AutoApprovalCeiling is the refund amount below which the system may
	// approve without a human. Nil disables auto-approval for the tenant.
	AutoApprovalCeiling *decimal.Decimal `json:"auto_approval_ceiling,omitempty"`
	// StoreCreditBonusPercent is the incentive applied when the customer
	// chooses store credit over an original-payment refund
	StoreCreditBonusPercent decimal.Decimal `json:"store_credit_bonus_percent"`
	ReturnWindowDays        int             `json:"return_window_days"`
	// EvidenceReasons lists reason codes that demand photo evidence
	EvidenceReasons []ReasonCode `json:"evidence_reasons,omitempty"`
	Rules           []PolicyRule `json:"rules,omitempty"`
}

// DefaultStoreCreditBonusPercent is used when a tenant has not configured one
var DefaultStoreCreditBonusPercent = decimal.NewFromInt(10)

// Validate checks the snapshot is structurally usable for evaluation
func (p *PolicySnapshot) Validate() error {
	if p.Currency == "" {
		return NewPolicyEvaluationError("policy currency is not configured")
	}
	if p.StoreCreditBonusPercent.IsNegative() {
		return NewPolicyEvaluationError("store credit bonus cannot be negative")
	}
	for _, rule := range p.Rules {
		if rule.Effect.FeePercent.IsNegative() || rule.Effect.FeeFlat.IsNegative() {
			return NewPolicyEvaluationError(fmt.Sprintf("rule %s has a negative fee", rule.ID))
		}
	}
	return nil
}

// RequiresEvidence reports whether the reason demands photo evidence
func (p *PolicySnapshot) RequiresEvidence(reason ReasonCode) bool {
	for _, r := range p.EvidenceReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// MatchRule returns the first rule (ascending priority, insertion order on
// ties) that applies to the item, or nil when no rule matches
func (p *PolicySnapshot) MatchRule(item *ReturnLineItem) *PolicyRule {
	ordered := make([]int, len(p.Rules))
	for i := range ordered {
		ordered[i] = i
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		return p.Rules[ordered[a]].Priority < p.Rules[ordered[b]].Priority
	})
	for _, idx := range ordered {
		if p.Rules[idx].Matches(item) {
			return &p.Rules[idx]
		}
	}
	return nil
}

// Value implements driver.Valuer so the snapshot persists as a jsonb column
func (p PolicySnapshot) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for jsonb retrieval
func (p *PolicySnapshot) Scan(value any) error {
	if value == nil {
		*p = PolicySnapshot{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PolicySnapshot", value)
	}
	return json.Unmarshal(data, p)
}
