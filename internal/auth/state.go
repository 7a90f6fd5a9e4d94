package auth

import "slices"

// State is the step an authentication attempt has reached.
type State string

const (
	StateIdle                    State = "IDLE"
	StateCardReady               State = "CARD_READY"
	StateCertificateFetched      State = "CERTIFICATE_FETCHED"
	StateCertificateLocallyValid State = "CERTIFICATE_LOCALLY_VALID"
	StateNonceSigned             State = "NONCE_SIGNED"
	StateSignatureVerified       State = "SIGNATURE_VERIFIED"
	StateAuthenticated           State = "AUTHENTICATED"

	StateCardUnavailable        State = "CARD_UNAVAILABLE"
	StateCertificateExpired     State = "CERTIFICATE_EXPIRED"
	StateCertificateNotYetValid State = "CERTIFICATE_NOT_YET_VALID"
	StateSignatureInvalid       State = "SIGNATURE_INVALID"
	StateRevocationCheckFailed  State = "REVOCATION_CHECK_FAILED"
)

var validStateTransitions = map[State][]State{
	StateIdle:                    {StateCardReady, StateCardUnavailable},
	StateCardReady:               {StateCertificateFetched, StateCardUnavailable},
	StateCertificateFetched:      {StateCertificateLocallyValid, StateCertificateExpired, StateCertificateNotYetValid},
	StateCertificateLocallyValid: {StateNonceSigned, StateCardUnavailable},
	StateNonceSigned:             {StateSignatureVerified, StateSignatureInvalid},
	StateSignatureVerified:       {StateAuthenticated, StateRevocationCheckFailed},
	StateAuthenticated:           {}, // terminal state
	StateCardUnavailable:         {}, // terminal state
	StateCertificateExpired:      {}, // terminal state
	StateCertificateNotYetValid:  {}, // terminal state
	StateSignatureInvalid:        {}, // terminal state
	StateRevocationCheckFailed:   {}, // terminal state
}

// isValidStateTransition checks if a transition from currentState to nextState is allowed.
func isValidStateTransition(currentState, nextState State) bool {
	validTransitions, ok := validStateTransitions[currentState]
	if !ok {
		return false
	}
	return slices.Contains(validTransitions, nextState)
}

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	next, ok := validStateTransitions[s]
	return ok && len(next) == 0
}
