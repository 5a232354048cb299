// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is returned when a campaign row does not exist.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// IsNotFound reports whether err wraps an ErrCampaignNotFound.
func IsNotFound(err error) bool {
	var nf *ErrCampaignNotFound
	return errors.As(err, &nf)
}

// Scheduling run failures. Nothing is persisted when one of these is returned.
var (
	ErrInvalidWindow    = errors.New("invalid time window")
	ErrNoRecipients     = errors.New("no recipients found for this campaign")
	ErrNoTemplates      = errors.New("no templates found in the selected pool")
	ErrAlreadyScheduled = errors.New("campaign is already scheduled")
	ErrInvalidSettings  = errors.New("invalid scheduler settings")
	ErrInvalidCampaign  = errors.New("invalid campaign")
)

// Delivery failures.
var (
	ErrMissingCredential = errors.New("delivery API key not configured")
	ErrInvalidCredential = errors.New("invalid delivery API key")
	ErrRateLimited       = errors.New("rate limited by delivery API")
	ErrTransientDelivery = errors.New("delivery failed")
	ErrOutsideWindow     = errors.New("outside scheduled time window")
)
