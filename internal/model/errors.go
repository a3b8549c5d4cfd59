package model

import "fmt"

// SourceErrorKind enumerates the design-level SourceError taxonomy of
// spec §7: failures a Source backend (HTTP or File) can report while
// loading metadata, an index, or a document.
type SourceErrorKind string

const (
	ErrNetworkFailure SourceErrorKind = "network_failure"
	ErrNotFound       SourceErrorKind = "not_found"
	ErrInvalidJSON    SourceErrorKind = "invalid_json"
	ErrInvalidCSV     SourceErrorKind = "invalid_csv"
	ErrInvalidURL     SourceErrorKind = "invalid_url"
	ErrIO             SourceErrorKind = "io"
)

// SourceError is the common error type returned by Source methods.
type SourceError struct {
	Kind SourceErrorKind
	Err  error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError wraps err under the given kind.
func NewSourceError(kind SourceErrorKind, err error) *SourceError {
	return &SourceError{Kind: kind, Err: err}
}

// KeySourceError wraps a SourceError with the two additional failure
// modes specific to loading a public key: an unparsable OpenPGP
// armour, or a fingerprint mismatch between what was requested and
// what was found.
type KeySourceError struct {
	Source              *SourceError
	OpenPGPParseError    error
	FingerprintMismatch  bool
	RequestedFingerprint string
	ActualFingerprint    string
}

func (e *KeySourceError) Error() string {
	switch {
	case e.FingerprintMismatch:
		return fmt.Sprintf("key fingerprint mismatch: requested %s, got %s", e.RequestedFingerprint, e.ActualFingerprint)
	case e.OpenPGPParseError != nil:
		return fmt.Sprintf("openpgp parse error: %v", e.OpenPGPParseError)
	case e.Source != nil:
		return e.Source.Error()
	default:
		return "key source error"
	}
}

func (e *KeySourceError) Unwrap() error {
	if e.OpenPGPParseError != nil {
		return e.OpenPGPParseError
	}
	if e.Source != nil {
		return e.Source
	}
	return nil
}

// RetrievalError annotates a SourceError with the DiscoveredDoc that
// failed to retrieve.
type RetrievalError struct {
	Doc    DiscoveredDoc
	Source *SourceError
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieving %s: %v", e.Doc.URL, e.Source)
}

func (e *RetrievalError) Unwrap() error { return e.Source }

// StoreErrorKind enumerates the design-level StoreError taxonomy.
type StoreErrorKind string

const (
	ErrFilenameDerivation StoreErrorKind = "filename_derivation_failed"
	ErrSerialization      StoreErrorKind = "serialization_failed"
	ErrStoreIO            StoreErrorKind = "io"
)

// StoreError is returned by the Store visitor.
type StoreError struct {
	Kind StoreErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("store: %s", e.Kind)
}

func (e *StoreError) Unwrap() error { return e.Err }
