package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/crypto"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/logger"
	"github.com/information-sharing-networks/eid-claim-demo/app/internal/services"
)

// maxMultipartMemory is the part of a multipart body kept in memory, the rest is buffered to disk
const maxMultipartMemory = 1 << 20

// HandleSubmit accepts a signed claim and returns the service's response.
//
//	POST /submit (multipart/form-data)
//	  claim    the signed container, sent as a file with Content-Type application/x-ddoc or application/vnd.bdoc-<version>
//	  cert     the claimant's authentication certificate (base64 DER) the response is encrypted for
//	  nocrypt  optional, any value. The response is returned unencrypted and cert can be omitted
//
// The response body is the encrypted response (application/x-cdoc), or the signed response document
// (application/x-ddoc) when nocrypt is given. Errors are returned as text/plain with status 400.
func HandleSubmit(checker services.ClaimChecker, responder services.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logger.ContextRequestLogger(r.Context())

		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			respondWithError(w, r, services.NewWrongTypeError("Uploaded file missing or of wrong type!"))
			return
		}
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				reqLogger.Warn("failed to remove multipart files", slog.Any("error", err))
			}
		}()

		claim, mimeType, digest, err := readClaim(r)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		logger.ContextWithLogAttrs(r.Context(),
			slog.String("claim_type", mimeType),
			slog.Int("claim_bytes", len(claim)),
			slog.String("claim_sha256", digest),
		)

		if _, err := checker.CheckClaim(claim, mimeType); err != nil {
			respondWithError(w, r, err)
			return
		}

		_, nocrypt := r.MultipartForm.Value["nocrypt"]
		var resp *services.Response
		if nocrypt {
			resp, err = responder.Respond(nil, true)
		} else {
			cert, certErr := services.ParseRecipientCertificate(r.FormValue("cert"))
			if certErr != nil {
				respondWithError(w, r, certErr)
				return
			}
			resp, err = responder.Respond(cert, false)
		}
		if err != nil {
			respondWithError(w, r, err)
			return
		}

		logger.ContextWithLogAttrs(r.Context(), slog.String("response_id", resp.ID.String()), slog.Bool("nocrypt", nocrypt))

		w.Header().Set("Content-Type", resp.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, resp.FileName))
		w.Header().Set("X-Response-ID", resp.ID.String())
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(resp.Body); err != nil {
			reqLogger.Error("failed to write response", slog.Any("error", err))
		}
	}
}

// readClaim returns the uploaded claim file, the content type it was sent with and its SHA-256
func readClaim(r *http.Request) ([]byte, string, string, error) {
	file, header, err := r.FormFile("claim")
	if err != nil {
		return nil, "", "", services.NewWrongTypeError("Uploaded file missing or of wrong type!")
	}
	defer file.Close()

	var data bytes.Buffer
	digest, err := crypto.CalculateSHA256FromReader(io.TeeReader(file, &data))
	if err != nil {
		return nil, "", "", services.NewWrongTypeError("Uploaded file missing or of wrong type!")
	}
	return data.Bytes(), header.Header.Get("Content-Type"), digest, nil
}

// respondWithError maps service errors to the plain text responses clients display to the user
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := "Error creating response"

	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.Code() {
		case services.ErrCodeWrongType:
			status, body = http.StatusBadRequest, "Uploaded file missing or of wrong type!"
		case services.ErrCodeInvalidClaim:
			status, body = http.StatusBadRequest, "The claim's signature is invalid!\n"+svcErr.Error()
		case services.ErrCodeMissingRecipient:
			status, body = http.StatusBadRequest, "No recipient certificate specified!"
			if svcErr.Unwrap() != nil {
				body = "Invalid recipient certificate!\n" + svcErr.Error()
			}
		case services.ErrCodeResponse:
			body = svcErr.Error()
		}
	}

	reqLogger := logger.ContextRequestLogger(r.Context())
	reqLogger.Warn("Request failed",
		slog.String("error", err.Error()),
		slog.Int("status_code", status),
	)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body+"\n")
}
