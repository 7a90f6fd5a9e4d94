// crypto package provides the low level certificate, signature and key helpers shared by the
// eID client and the claim service.
//
// Card-side key operations live in the card package. This package only verifies what the card produced
// and manages the software keys used by the claim service.
package crypto
