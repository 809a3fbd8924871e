package dispensing

import "github.com/erp/dispensing/internal/domain/shared"

// Dispensing error codes
var (
	ErrInvalidAllocationKey  = shared.NewDomainError("INVALID_ALLOCATION_KEY", "Invalid allocation key")
	ErrInvalidLot            = shared.NewDomainError("INVALID_LOT", "Lot selection is not valid")
	ErrNoResponsibleOperator = shared.NewDomainError("NO_RESPONSIBLE_OPERATOR", "At least one responsible operator is required")
	ErrConfirmationMismatch  = shared.NewDomainError("CONFIRMATION_MISMATCH", "Confirmation code does not match")
	ErrExcessBlocked         = shared.NewDomainError("EXCESS_BLOCKED", "Allocated quantities exceed the requirement")
	ErrNothingToSubmit       = shared.NewDomainError("NOTHING_TO_SUBMIT", "No lots selected")
	ErrNoOrderSelected       = shared.NewDomainError("NO_ORDER_SELECTED", "No production order selected")
	ErrReviewNotStarted      = shared.NewDomainError("REVIEW_NOT_STARTED", "Review step has not been started")
	ErrSubmissionFailed      = shared.NewDomainError("SUBMISSION_FAILED", "The dispensation could not be registered")
	ErrUnknownRequirement    = shared.NewDomainError("UNKNOWN_REQUIREMENT", "Allocation key does not match any requirement of the order")
	ErrOrderSuperseded       = shared.NewDomainError("ORDER_SUPERSEDED", "Another production order was selected while loading")
	ErrDuplicateSubmission   = shared.NewDomainError("DUPLICATE_SUBMISSION", "This dispensation is already being submitted")
)
