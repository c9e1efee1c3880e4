// Package wsregistry implements C7: the WebSocket endpoint registry. It has
// no direct Go teacher analogue, so it is grounded on
// studease-common-open/http/server.go's Init-then-serve configuration idiom
// and studease-common-open/chat/chat.go's mutex-guarded session maps,
// translated (not transliterated) from Red5's DefaultWsServerContainer
// concurrency model in original_source/.
package wsregistry

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel deployment errors, mirroring rtmperrors' sentinel-plus-wrapper
// idiom for the registry's own error domain.
var (
	ErrDuplicatePath     = errors.New("wsregistry: path already registered")
	ErrAddNotAllowed     = errors.New("wsregistry: endpoint registration is closed after the first handshake lookup")
	ErrEncoderInvalid    = errors.New("wsregistry: endpoint encoder failed to construct")
	ErrMissingAnnotation = errors.New("wsregistry: endpoint config declares no path")
)

// DeploymentError wraps a sentinel with the offending path, for callers that
// reject or log failed endpoint registration.
type DeploymentError struct {
	Err  error
	Path string
}

func (e *DeploymentError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (path=%s)", e.Err, e.Path)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

func wrapDeployment(err error, path string) *DeploymentError {
	return &DeploymentError{Err: err, Path: path}
}
