package response

import "slices"

type State string

const (
	StateEncrypted State = "ENCRYPTED"
	StateDecrypted State = "DECRYPTED"
	StateVerified  State = "VERIFIED"
)

var validStateTransitions = map[State][]State{
	StateEncrypted: {StateDecrypted},
	StateDecrypted: {StateVerified},
	StateVerified:  {}, // terminal state
}

func isValidStateTransition(from, to State) bool {
	return slices.Contains(validStateTransitions[from], to)
}
