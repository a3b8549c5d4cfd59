package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/opslane/advisory-walker/internal/changes"
	"github.com/opslane/advisory-walker/internal/fetcher"
	"github.com/opslane/advisory-walker/internal/model"
	"github.com/opslane/advisory-walker/internal/openpgputil"
	"github.com/opslane/advisory-walker/internal/rolie"
)

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	Since *time.Time
}

// HTTPSource is the remote Source backend: it drives a Fetcher against
// a provider's published distributions (spec §4.A.1).
type HTTPSource struct {
	fetcher  *fetcher.Fetcher
	metadata MetadataLoader
	options  HTTPOptions
}

// NewHTTPSource builds an HTTPSource from a Fetcher, a MetadataLoader
// strategy, and options.
func NewHTTPSource(f *fetcher.Fetcher, metadataLoader MetadataLoader, opts HTTPOptions) *HTTPSource {
	return &HTTPSource{fetcher: f, metadata: metadataLoader, options: opts}
}

func (s *HTTPSource) LoadMetadata(ctx context.Context) (*model.ProviderMetadata, error) {
	return s.metadata.Load(ctx, s.fetcher)
}

func (s *HTTPSource) LoadIndex(ctx context.Context, dctx *model.DistributionContext) ([]model.DiscoveredDoc, error) {
	switch dctx.Kind {
	case model.KindDirectory:
		return s.loadDirectoryIndex(ctx, dctx)
	case model.KindFeed:
		return s.loadFeedIndex(ctx, dctx)
	default:
		return nil, model.NewSourceError(model.ErrInvalidURL, fmt.Errorf("unknown distribution kind"))
	}
}

func (s *HTTPSource) loadDirectoryIndex(ctx context.Context, dctx *model.DistributionContext) ([]model.DiscoveredDoc, error) {
	base := dctx.BaseURL.String()

	csvURL := changes.JoinPath(base, "changes.csv")
	resp, err := s.fetcher.Get(ctx, csvURL)
	if err != nil {
		return nil, model.NewSourceError(model.ErrNetworkFailure, err)
	}

	var body []byte
	if resp == nil {
		// fall back to the compressed bulk index some mirrors publish
		xzResp, xzErr := s.fetcher.Get(ctx, changes.JoinPath(base, "changes.csv.xz"))
		if xzErr != nil {
			return nil, model.NewSourceError(model.ErrNetworkFailure, xzErr)
		}
		if xzResp == nil {
			return nil, model.NewSourceError(model.ErrNotFound, fmt.Errorf("no changes.csv at %s", base))
		}
		body, err = changes.DecompressXZ(xzResp.Body)
		if err != nil {
			return nil, model.NewSourceError(model.ErrInvalidCSV, err)
		}
	} else {
		body = resp.Body
	}

	entries, err := changes.Parse(body)
	if err != nil {
		return nil, model.NewSourceError(model.ErrInvalidCSV, err)
	}

	docs := make([]model.DiscoveredDoc, 0, len(entries))
	for _, e := range entries {
		docURL, err := url.Parse(changes.JoinPath(base, e.File))
		if err != nil {
			return nil, model.NewSourceError(model.ErrInvalidURL, err)
		}
		if s.options.Since != nil && e.Timestamp.Before(*s.options.Since) {
			continue
		}
		docs = append(docs, model.DiscoveredDoc{
			URL:      docURL,
			Modified: e.Timestamp,
			Context:  dctx,
		})
	}

	return docs, nil
}

func (s *HTTPSource) loadFeedIndex(ctx context.Context, dctx *model.DistributionContext) ([]model.DiscoveredDoc, error) {
	resp, err := s.fetcher.Get(ctx, dctx.BaseURL.String())
	if err != nil {
		return nil, model.NewSourceError(model.ErrNetworkFailure, err)
	}
	if resp == nil {
		return nil, model.NewSourceError(model.ErrNotFound, fmt.Errorf("no ROLIE feed at %s", dctx.BaseURL))
	}

	files, err := rolie.Parse(resp.Body)
	if err != nil {
		return nil, model.NewSourceError(model.ErrInvalidJSON, err)
	}

	docs := make([]model.DiscoveredDoc, 0, len(files))
	for _, f := range files {
		docURL, err := url.Parse(f.File)
		if err != nil {
			return nil, model.NewSourceError(model.ErrInvalidURL, err)
		}
		modified, err := time.Parse(time.RFC3339, f.Updated)
		if err != nil {
			modified = time.Time{}
		}
		if s.options.Since != nil && modified.Before(*s.options.Since) {
			continue
		}

		doc := model.DiscoveredDoc{
			URL:      docURL,
			Modified: modified,
			Context:  dctx,
		}
		if f.DigestURL != "" {
			if du, err := url.Parse(f.DigestURL); err == nil {
				doc.DigestURL = du
			}
		}
		if f.Signature != "" {
			if su, err := url.Parse(f.Signature); err == nil {
				doc.SignatureURL = su
			}
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// LoadDocument concurrently fetches the signature, SHA-256, and
// SHA-512 siblings, then streams the document body through running
// hashers. The body fetch does not start until all three sibling
// fetches have completed; it does not overlap with them.
func (s *HTTPSource) LoadDocument(ctx context.Context, doc model.DiscoveredDoc) (*model.RetrievedDoc, error) {
	var (
		wg                         sync.WaitGroup
		signature                  []byte
		sha256Line, sha512Line     string
		sigErr, sha256Err, sha512Err error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		signature, sigErr = s.fetchOptional(ctx, optionalURL(doc.SignatureURL, doc.URL.String()+".asc"))
	}()
	go func() {
		defer wg.Done()
		if u := digestURL(doc.DigestURL, doc.URL.String(), ".sha256"); u != "" {
			var line []byte
			line, sha256Err = s.fetchOptional(ctx, u)
			sha256Line = strings.TrimSpace(string(decompressIfGzip(line)))
		}
	}()
	go func() {
		defer wg.Done()
		if u := digestURL(doc.DigestURL, doc.URL.String(), ".sha512"); u != "" {
			var line []byte
			line, sha512Err = s.fetchOptional(ctx, u)
			sha512Line = strings.TrimSpace(string(decompressIfGzip(line)))
		}
	}()
	wg.Wait()

	if sigErr != nil {
		return nil, model.NewSourceError(model.ErrNetworkFailure, sigErr)
	}
	if sha256Err != nil {
		return nil, model.NewSourceError(model.ErrNetworkFailure, sha256Err)
	}
	if sha512Err != nil {
		return nil, model.NewSourceError(model.ErrNetworkFailure, sha512Err)
	}

	var expected256, expected512 *model.ExpectedDigest
	h256 := sha256.New()
	h512 := sha512.New()
	if sha256Line != "" {
		expected256 = &model.ExpectedDigest{Algorithm: "sha256", Expected: strings.ToLower(firstToken(sha256Line))}
	}
	if sha512Line != "" {
		expected512 = &model.ExpectedDigest{Algorithm: "sha512", Expected: strings.ToLower(firstToken(sha512Line))}
	}

	resp, err := s.fetcher.GetStreaming(ctx, doc.URL.String(), func(chunk []byte) {
		if expected256 != nil {
			h256.Write(chunk)
		}
		if expected512 != nil {
			h512.Write(chunk)
		}
	})
	if err != nil {
		return nil, model.NewSourceError(model.ErrNetworkFailure, err)
	}
	if resp == nil {
		return nil, model.NewSourceError(model.ErrNotFound, fmt.Errorf("document not found: %s", doc.URL))
	}

	if expected256 != nil {
		expected256.Actual = hex.EncodeToString(h256.Sum(nil))
	}
	if expected512 != nil {
		expected512.Actual = hex.EncodeToString(h512.Sum(nil))
	}

	return &model.RetrievedDoc{
		Discovered: doc,
		Data:       resp.Body,
		Signature:  signature,
		SHA256:     expected256,
		SHA512:     expected512,
		Metadata: model.RetrievalMetadata{
			ETag:             resp.ETag,
			LastModification: resp.LastModification,
		},
	}, nil
}

func (s *HTTPSource) LoadPublicKey(ctx context.Context, ref KeyRef) (*openpgputil.PublicKey, error) {
	resp, err := s.fetcher.Get(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("public key not found at %s", ref.URL)
	}

	return openpgputil.ParseArmored(decompressIfGzip(resp.Body), ref.Fingerprint)
}

// fetchOptional returns the raw body, or nil if the URL 404s.
func (s *HTTPSource) fetchOptional(ctx context.Context, url string) ([]byte, error) {
	resp, err := s.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return resp.Body, nil
}

func optionalURL(u *url.URL, fallback string) string {
	if u != nil {
		return u.String()
	}
	return fallback
}

func digestURL(u *url.URL, docURL, suffix string) string {
	if u != nil && strings.HasSuffix(u.String(), suffix) {
		return u.String()
	}
	return docURL + suffix
}

func firstToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// decompressIfGzip transparently unwraps a gzip-compressed sibling
// file (some mirrors publish .sha256.gz / .sha512.gz / key.txt.gz
// alongside the plain form); data that isn't gzip is returned as-is.
func decompressIfGzip(data []byte) []byte {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return data
	}
	return out
}
