package returns

import (
	"fmt"
	"strings"

	"github.com/returnhub/backend/internal/domain/shared"
)

// Error codes surfaced by the return engine. Validation failures name the
// offending items/fields so the caller can route the customer back to the
// exact step that needs correction.
const (
	CodeOrderNotFound        = "ORDER_NOT_FOUND"
	CodeEmailMismatch        = "EMAIL_MISMATCH"
	CodeItemNotEligible      = "ITEM_NOT_ELIGIBLE"
	CodeEvidenceRequired     = "EVIDENCE_REQUIRED"
	CodePolicyEvaluation     = "POLICY_EVALUATION_ERROR"
	CodeIllegalTransition    = "ILLEGAL_TRANSITION"
	CodeMissingJustification = "MISSING_JUSTIFICATION"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInvalidReturnRequest = "INVALID_RETURN_REQUEST"
	CodeForbidden            = "FORBIDDEN"
)

// Order lookup failures
var (
	ErrOrderNotFound = shared.NewDomainError(CodeOrderNotFound, "Order could not be found for this tenant")
	ErrEmailMismatch = shared.NewDomainError(CodeEmailMismatch, "Order email verification failed")
)

// NewItemNotEligibleError reports the specific line items that were not
// eligible for return (unknown line or requested quantity above eligible)
func NewItemNotEligibleError(lineIDs []string) *shared.DomainError {
	return shared.NewDomainErrorf(CodeItemNotEligible,
		"Items not eligible for return: %s", strings.Join(lineIDs, ", "))
}

// NewEvidenceRequiredError reports line items whose reason demands photo
// evidence that was not supplied
func NewEvidenceRequiredError(lineIDs []string) *shared.DomainError {
	return shared.NewDomainErrorf(CodeEvidenceRequired,
		"Photo evidence is required for items: %s", strings.Join(lineIDs, ", "))
}

// NewPolicyEvaluationError signals structurally invalid tenant policy data.
// Fatal for the submission; escalated as a tenant-configuration fault.
func NewPolicyEvaluationError(detail string) *shared.DomainError {
	return shared.NewDomainErrorf(CodePolicyEvaluation, "Policy evaluation failed: %s", detail)
}

// NewIllegalTransitionError reports a transition not present in the state
// table for the current status
func NewIllegalTransitionError(from, to Status) *shared.DomainError {
	return shared.NewDomainError(CodeIllegalTransition,
		fmt.Sprintf("Cannot transition return request from %s to %s", from, to))
}

// NewActorNotPermittedError reports an actor attempting a transition reserved
// for a different role (decision and fulfillment moves are staff-only)
func NewActorNotPermittedError(target Status) *shared.DomainError {
	return shared.NewDomainErrorf(CodeForbidden,
		"Actor is not permitted to transition this return request to %s", target)
}

// NewMissingJustificationError blocks an admin override that carries no note
func NewMissingJustificationError() *shared.DomainError {
	return shared.NewDomainError(CodeMissingJustification,
		"Admin override requires a non-empty justification note")
}
