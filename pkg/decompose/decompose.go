// Package decompose talks to the SBOM decomposition service and reads the
// decompositions it returns.
package decompose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	httpretryafter "github.com/aereal/go-httpretryafter"
	"github.com/avast/retry-go"

	"github.com/ritzau/sbom-sunburst/pkg/logging"
	"github.com/ritzau/sbom-sunburst/pkg/model"
)

// DecomposePath is the service endpoint, relative to the base URL.
const DecomposePath = "/api/v1/sbom/decompose"

var (
	ErrNoFiles           = errors.New("no SBOM file provided")
	ErrUnsupportedFormat = errors.New("unsupported SBOM file format")
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
	// RetryAfter is the wait the service asked for, zero when it gave none.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("decomposition service returned %d", e.Code)
	}
	return fmt.Sprintf("decomposition service returned %d: %s", e.Code, e.Body)
}

// Temporary reports whether the request may succeed when sent again.
func (e *StatusError) Temporary() bool {
	switch e.Code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client calls the decomposition service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// Attempts bounds how often a request is sent. Zero means one attempt.
	Attempts   uint
	RetryDelay time.Duration
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
		Attempts:   defaultAttempts,
		RetryDelay: defaultRetryDelay,
	}
}

// Decompose sends the SBOM files in opts to the service and returns the
// resolved dependency tree. Overload and gateway errors are retried with
// backoff, honoring Retry-After.
func (c *Client) Decompose(ctx context.Context, opts model.DecomposeOptions) (*model.Decomposition, error) {
	if len(opts.Files) == 0 {
		return nil, ErrNoFiles
	}

	body, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode decompose request: %w", err)
	}

	start := time.Now()
	logging.InfoContext(ctx, "decomposing SBOM",
		"file", opts.Files[0].FileName,
		"onlyVulnerable", opts.OnlyVulnerable,
		"maxDepth", opts.MaxDepth,
	)

	var d *model.Decomposition
	err = retry.Do(
		func() error {
			var err error
			d, err = c.post(ctx, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(max(c.Attempts, 1)),
		retry.Delay(c.RetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.Temporary()
			}
			return !errors.Is(err, errMalformedResponse)
		}),
		retry.OnRetry(func(n uint, err error) {
			logging.WarnContext(ctx, "retrying decomposition request", "attempt", n+1, "error", err)
		}),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
				return min(statusErr.RetryAfter, maxRetryDelay)
			}
			return retry.BackOffDelay(n, err, config)
		}),
	)
	if err != nil {
		return nil, err
	}

	logging.InfoContext(ctx, "SBOM decomposed",
		"nodes", d.NodeCount(),
		"cycles", len(d.DependencyCycles),
		"durationMs", time.Since(start).Milliseconds(),
	)
	return d, nil
}

var errMalformedResponse = errors.New("malformed decomposition response")

func (c *Client) post(ctx context.Context, body []byte) (*model.Decomposition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+DecomposePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create decompose request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := logging.GetRequestID(ctx); id != "" {
		req.Header.Set(logging.RequestIDHeader, id)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call decomposition service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
		if at, err := httpretryafter.Parse(resp.Header.Get("Retry-After")); err == nil {
			statusErr.RetryAfter = max(time.Until(at), 0)
		}
		return nil, statusErr
	}

	d, err := Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedResponse, err)
	}
	return d, nil
}

// Decode reads a decomposition response.
func Decode(r io.Reader) (*model.Decomposition, error) {
	var d model.Decomposition
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode decomposition: %w", err)
	}
	return &d, nil
}

// LoadFile reads a decomposition response saved to disk.
func LoadFile(path string) (*model.Decomposition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open decomposition: %w", err)
	}
	defer f.Close()

	d, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// FormatOf detects the SBOM encoding from the file extension.
func FormatOf(fileName string) (cdx.BOMFileFormat, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".json":
		return cdx.BOMFileFormatJSON, nil
	case ".xml":
		return cdx.BOMFileFormatXML, nil
	default:
		return 0, fmt.Errorf("%s: %w", fileName, ErrUnsupportedFormat)
	}
}

// NewFileOptions reads the SBOM at path and builds a request for it.
func NewFileOptions(path string, onlyVulnerable bool, maxDepth int) (model.DecomposeOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.DecomposeOptions{}, fmt.Errorf("read SBOM: %w", err)
	}
	return NewOptions(filepath.Base(path), data, onlyVulnerable, maxDepth)
}

// ParseBOM decodes a CycloneDX document, picking the format from fileName.
func ParseBOM(fileName string, data []byte) (*cdx.BOM, cdx.BOMFileFormat, error) {
	format, err := FormatOf(fileName)
	if err != nil {
		return nil, format, err
	}

	var bom cdx.BOM
	if err := cdx.NewBOMDecoder(bytes.NewReader(data), format).Decode(&bom); err != nil {
		return nil, format, fmt.Errorf("parse SBOM %s: %w", fileName, err)
	}
	return &bom, format, nil
}

// NewOptions builds a request for an SBOM held in memory. The SBOM is parsed
// first so that malformed documents are rejected locally. The service only
// reads JSON, so XML documents are re-encoded.
func NewOptions(fileName string, data []byte, onlyVulnerable bool, maxDepth int) (model.DecomposeOptions, error) {
	bom, format, err := ParseBOM(fileName, data)
	if err != nil {
		return model.DecomposeOptions{}, err
	}

	components := 0
	if bom.Components != nil {
		components = len(*bom.Components)
	}
	logging.Debug("SBOM parsed", "file", fileName, "serialNumber", bom.SerialNumber, "components", components)

	if format == cdx.BOMFileFormatXML {
		if bom.BOMFormat == "" {
			bom.BOMFormat = "CycloneDX"
		}
		var buf bytes.Buffer
		if err := cdx.NewBOMEncoder(&buf, cdx.BOMFileFormatJSON).Encode(bom); err != nil {
			return model.DecomposeOptions{}, fmt.Errorf("re-encode SBOM %s: %w", fileName, err)
		}
		data = buf.Bytes()
		fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".json"
	}

	return model.DecomposeOptions{
		Files:          []model.SBOMFile{{FileName: fileName, Data: data}},
		OnlyVulnerable: onlyVulnerable,
		MaxDepth:       max(maxDepth, 0),
	}, nil
}
