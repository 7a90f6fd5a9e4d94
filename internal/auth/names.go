package auth

import (
	"crypto/x509"
	"strings"
)

// SubjectCN returns the full subject common name of an ID card certificate,
// e.g. "TAMM,JAAN,37605030299".
func SubjectCN(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	return cert.Subject.CommonName
}

// DisplayName turns an ID card CN of the form "SURNAME,GIVEN,CODE" into "GIVEN SURNAME, CODE".
// Any other CN is returned as is.
func DisplayName(cn string) string {
	parts := strings.Split(cn, ",")
	if len(parts) != 3 {
		return cn
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return cn
		}
	}
	return parts[1] + " " + parts[0] + ", " + parts[2]
}
