package dockerenv

import "github.com/docker/docker/errdefs"

// errorClass is the closed taxonomy retry decisions are driven by. Engine
// client errors are normalized into it at this single boundary; nothing else
// in the package inspects SDK error types.
type errorClass int

const (
	// classOther covers non-engine errors (programming/config mistakes,
	// cancellation). Never retried.
	classOther errorClass = iota

	// classPermanent covers client-side engine errors (not found, bad
	// request). Never retried.
	classPermanent

	// classTransient covers server-side engine errors worth retrying.
	classTransient
)

// classify maps an engine client error to its class and the HTTP status the
// daemon would have reported for it. Status is 0 for classOther.
func classify(err error) (errorClass, int) {
	switch {
	case err == nil:
		return classOther, 0
	case errdefs.IsNotFound(err):
		return classPermanent, 404
	case errdefs.IsInvalidParameter(err):
		return classPermanent, 400
	case errdefs.IsUnauthorized(err):
		return classPermanent, 401
	case errdefs.IsForbidden(err):
		return classPermanent, 403
	case errdefs.IsConflict(err):
		return classPermanent, 409
	case errdefs.IsNotImplemented(err):
		return classPermanent, 501
	case errdefs.IsCancelled(err):
		return classOther, 0
	case errdefs.IsUnavailable(err):
		return classTransient, 503
	case errdefs.IsDeadline(err):
		return classTransient, 504
	case errdefs.IsDataLoss(err), errdefs.IsSystem(err):
		return classTransient, 500
	default:
		return classOther, 0
	}
}
