package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	apperrors "github.com/vidtube/backend/pkg/errors"
	"github.com/vidtube/backend/pkg/validator"
)

// maxFormMemory is the in-memory share of a parsed multipart form; the rest
// goes to disk.
const maxFormMemory = 1 << 20

// formRequest is a request DTO that can also be filled from form values.
type formRequest interface {
	fromForm(v url.Values)
}

// decodeRequest fills dst from a JSON, urlencoded or multipart body and
// validates it. allowEmpty accepts a missing JSON body.
func decodeRequest(r *http.Request, dst formRequest, allowEmpty bool) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return apperrors.InvalidInput("invalid form body")
		}
		dst.fromForm(r.Form)
		return validator.Validate(dst)
	default:
		err := validator.DecodeAndValidate(r, dst)
		if err == nil {
			return nil
		}
		var valErr *validator.ValidationError
		if errors.As(err, &valErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return apperrors.InvalidInput("request body is required")
		}
		return apperrors.InvalidInput("invalid request body")
	}
}
