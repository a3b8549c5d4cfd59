package walker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/opslane/advisory-walker/internal/model"
	"github.com/opslane/advisory-walker/internal/openpgputil"
	"github.com/opslane/advisory-walker/internal/source"
)

// ValidationOptions configures the Validation stage (spec §4.E).
type ValidationOptions struct {
	// RequireSignature reports NoSignature when no detached signature
	// was retrieved, rather than treating it as a passing check.
	RequireSignature bool

	// ValidationDate is the Unix timestamp OpenPGP signature
	// verification is evaluated at. Zero means "now", resolved once
	// per walk so a long-running walk uses a stable clock.
	ValidationDate int64
}

// ValidationVisitor wraps a downstream ValidatedVisitor, checking each
// RetrievedDoc's detached signature and digests (spec §4.E). It loads
// the provider's trusted keys once, during VisitContext.
type ValidationVisitor struct {
	Source  source.Source
	Inner   ValidatedVisitor
	Options ValidationOptions
	Logger  *slog.Logger

	keys           []*openpgputil.PublicKey
	validationDate int64
}

// NewValidationVisitor builds a ValidationVisitor.
func NewValidationVisitor(src source.Source, inner ValidatedVisitor, opts ValidationOptions, logger *slog.Logger) *ValidationVisitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidationVisitor{Source: src, Inner: inner, Options: opts, Logger: logger}
}

func (v *ValidationVisitor) VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error {
	v.keys = nil
	v.validationDate = v.Options.ValidationDate
	if v.validationDate == 0 {
		v.validationDate = time.Now().Unix()
	}
	for _, k := range metadata.PublicOpenPGPKeys {
		key, err := v.Source.LoadPublicKey(ctx, source.KeyRef{Fingerprint: k.Fingerprint, URL: k.URL})
		if err != nil {
			v.Logger.Warn("failed to load trusted key", "fingerprint", k.Fingerprint, "url", k.URL, "error", err)
			continue
		}
		v.keys = append(v.keys, key)
	}
	return v.Inner.VisitContext(ctx, metadata)
}

func (v *ValidationVisitor) VisitRetrieved(ctx context.Context, doc model.RetrievedDoc) error {
	validated := model.ValidatedDoc{Retrieved: doc}
	validated.Err = v.check(doc)
	return v.Inner.VisitValidated(ctx, validated)
}

func (v *ValidationVisitor) check(doc model.RetrievedDoc) *model.ValidationError {
	if err := v.checkDigests(doc); err != nil {
		return err
	}
	return v.checkSignature(doc)
}

func (v *ValidationVisitor) checkDigests(doc model.RetrievedDoc) *model.ValidationError {
	if doc.SHA256 != nil {
		sum := sha256.Sum256(doc.Data)
		actual := hex.EncodeToString(sum[:])
		if !strings.EqualFold(actual, doc.SHA256.Expected) {
			return &model.ValidationError{Outcome: model.ValidationDigestMismatch, Alg: "sha256", Expected: doc.SHA256.Expected, Actual: actual}
		}
	}
	if doc.SHA512 != nil {
		sum := sha512.Sum512(doc.Data)
		actual := hex.EncodeToString(sum[:])
		if !strings.EqualFold(actual, doc.SHA512.Expected) {
			return &model.ValidationError{Outcome: model.ValidationDigestMismatch, Alg: "sha512", Expected: doc.SHA512.Expected, Actual: actual}
		}
	}
	return nil
}

func (v *ValidationVisitor) checkSignature(doc model.RetrievedDoc) *model.ValidationError {
	if len(doc.Signature) == 0 {
		if v.Options.RequireSignature {
			return &model.ValidationError{Outcome: model.ValidationNoSignature}
		}
		return nil
	}

	if len(v.keys) == 0 {
		return &model.ValidationError{Outcome: model.ValidationUnknownKey}
	}

	err := openpgputil.VerifyDetached(v.keys, doc.Data, string(bytes.TrimSpace(doc.Signature)), v.validationDate)
	if err != nil {
		return &model.ValidationError{Outcome: model.ValidationSignatureBad}
	}
	return nil
}
