package auth

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		cn   string
		want string
	}{
		{"TAMM,JAAN,37605030299", "JAAN TAMM, 37605030299"},
		{"MÄNNIK,MARI-LIIS,47101010033", "MARI-LIIS MÄNNIK, 47101010033"},
		{"claim-service", "claim-service"},
		{"A,B", "A,B"},
		{"A,,C", "A,,C"},
	}
	for _, tt := range tests {
		t.Run(tt.cn, func(t *testing.T) {
			if got := DisplayName(tt.cn); got != tt.want {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.cn, got, tt.want)
			}
		})
	}
}

func TestSubjectCNNil(t *testing.T) {
	if SubjectCN(nil) != "" {
		t.Error("SubjectCN(nil) should be empty")
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateCardReady, true},
		{StateCertificateFetched, StateCertificateExpired, true},
		{StateNonceSigned, StateSignatureInvalid, true},
		{StateIdle, StateAuthenticated, false},
		{StateCertificateFetched, StateNonceSigned, false},
		{StateAuthenticated, StateIdle, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := isValidStateTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("isValidStateTransition() = %v, want %v", got, tt.want)
			}
		})
	}

	if !StateAuthenticated.Terminal() || StateCardReady.Terminal() {
		t.Error("Terminal() mismatch")
	}
}
