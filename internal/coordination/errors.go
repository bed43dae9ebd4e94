// File: internal/coordination/errors.go
package coordination

import (
	"net/http"

	"lifelink_backend/internal/common"
)

// Lifecycle errors. Each carries its own code so callers can tell them apart
// with errors.Is.
var (
	ErrInvalidState           = common.NewAPIError(http.StatusConflict, "INVALID_STATE", "The request is not in a state that allows this action.")
	ErrRequestUnavailable     = common.NewAPIError(http.StatusConflict, "REQUEST_UNAVAILABLE", "This request is no longer available.")
	ErrMissingDonor           = common.NewAPIError(http.StatusConflict, "MISSING_DONOR", "The request has no donor assigned.")
	ErrInsufficientStock      = common.NewAPIError(http.StatusConflict, "INSUFFICIENT_STOCK", "There is not enough stock of this blood group.")
	ErrAlreadyCompleted       = common.NewAPIError(http.StatusConflict, "ALREADY_COMPLETED", "This request has already been completed.")
	ErrCodeMismatch           = common.NewAPIError(http.StatusUnprocessableEntity, "CODE_MISMATCH", "The pickup code does not match.")
	ErrDeclarationIncomplete  = common.NewAPIError(http.StatusUnprocessableEntity, "DECLARATION_INCOMPLETE", "Every self-declaration item must be confirmed.")
	ErrNotEligible            = common.NewAPIError(http.StatusUnprocessableEntity, "NOT_ELIGIBLE", "You are not yet eligible to donate again.")
	ErrIncompatibleBloodGroup = common.NewAPIError(http.StatusUnprocessableEntity, "INCOMPATIBLE_BLOOD_GROUP", "Your blood group does not match this request.")
	ErrNotVerified            = common.NewAPIError(http.StatusForbidden, "NOT_VERIFIED", "Your identity must be verified before you can donate.")
)
