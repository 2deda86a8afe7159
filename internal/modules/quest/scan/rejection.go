package scan

import "fmt"

// Kind separates caller mistakes from suspected forgery.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindAuthenticity Kind = "authenticity"
)

// Reason is the stable code returned to clients.
type Reason string

const (
	ReasonMissingGuestID     Reason = "missing_guest_id"
	ReasonInvalidGuestID     Reason = "invalid_guest_id"
	ReasonInvalidSource      Reason = "invalid_source"
	ReasonMissingZone        Reason = "missing_zone"
	ReasonUnknownZone        Reason = "unknown_zone"
	ReasonInvalidDeviceProof Reason = "invalid_device_proof"
	ReasonMissingDeviceProof Reason = "missing_device_proof"
	ReasonInvalidGuestToken  Reason = "invalid_guest_token"
	ReasonMissingGuestToken  Reason = "missing_guest_token"
)

// Rejection is returned for every scan the validator refuses. No state has
// been touched when it is returned.
type Rejection struct {
	Kind    Kind
	Reason  Reason
	Message string
	// Detail is the underlying verification failure label, if any.
	Detail string
}

func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	if r.Detail != "" {
		return fmt.Sprintf("%s rejected (%s): %s [%s]", r.Kind, r.Reason, r.Message, r.Detail)
	}
	return fmt.Sprintf("%s rejected (%s): %s", r.Kind, r.Reason, r.Message)
}

func (r *Rejection) IsAuthenticity() bool { return r != nil && r.Kind == KindAuthenticity }

func invalid(reason Reason, msg string) *Rejection {
	return &Rejection{Kind: KindValidation, Reason: reason, Message: msg}
}

func forged(reason Reason, msg, detail string) *Rejection {
	return &Rejection{Kind: KindAuthenticity, Reason: reason, Message: msg, Detail: detail}
}
