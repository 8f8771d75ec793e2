package replica

import "errors"

var (
	// ErrCorruptSnapshot marks a remote snapshot whose payload could not be
	// decoded or merged. Pull treats it as "no remote state".
	ErrCorruptSnapshot = errors.New("replica: corrupt snapshot")

	// ErrVersionConflict is returned by a RemoteStore when a persisted
	// snapshot's version is not exactly one past the stored version.
	ErrVersionConflict = errors.New("replica: snapshot version conflict")

	// ErrRemoteUnavailable marks a push that was queued without a persist
	// attempt because the remote could not be read.
	ErrRemoteUnavailable = errors.New("replica: remote unavailable")

	// ErrMalformedUpdate marks an incremental update the algebra refused.
	ErrMalformedUpdate = errors.New("replica: malformed update")

	// ErrMissingCollaborator is returned by New when a required collaborator
	// is nil.
	ErrMissingCollaborator = errors.New("replica: missing collaborator")
)
