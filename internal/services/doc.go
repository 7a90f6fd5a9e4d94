// Package services implements the claim handling service behind POST /submit.
//
// ClaimChecker accepts a claim only if it is a signature container carrying exactly one valid
// signature. Responder builds the reply document, signs it with the service key and encrypts it
// for the claimant's authentication certificate.
//
// Each service is defined as an interface so handlers can be tested with fakes.
package services
