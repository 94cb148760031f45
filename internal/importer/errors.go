package importer

import (
	"errors"

	"github.com/mealpix/mealpix-go/internal/api"
)

// User-facing failure messages. Every failure class collapses into
// StatusFailed with one of these; the underlying category is logged but not
// carried past this mapping.
const (
	msgUploadFailed = "We couldn't upload your photo. Check your connection and try again."

	msgInvalidPhoto      = "That photo couldn't be processed. Try a different picture."
	msgPhotoNotFound     = "The uploaded photo could not be found. Please try again."
	msgPermissionDenied  = "You don't have permission to import recipes right now."
	msgImportLimit       = "You've reached your import limit. Try again later."
	msgImportStartFailed = "Something went wrong starting the import. Please try again."

	msgRecognitionFailed = "We couldn't read a recipe from that photo. Try a clearer picture."
	msgSubscriptionLost  = "We lost track of your import. Please try again."
)

// enqueueMessage maps an import-service rejection onto its user message.
func enqueueMessage(err error) string {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return msgImportStartFailed
	}

	switch apiErr.Code {
	case api.CodeInvalidArgument:
		return msgInvalidPhoto
	case api.CodeNotFound:
		return msgPhotoNotFound
	case api.CodePermissionDenied:
		return msgPermissionDenied
	case api.CodeResourceExhausted:
		return msgImportLimit
	default:
		return msgImportStartFailed
	}
}

// remoteFailureMessage maps a pipeline-reported failure onto its user
// message, preferring the server's own wording when it sent one.
func remoteFailureMessage(errorMessage string) string {
	if errorMessage != "" {
		return errorMessage
	}
	return msgRecognitionFailed
}
