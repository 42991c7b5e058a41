// Package ipfscontent uploads evidence files to a pinning service and
// validates the content references it hands back. Files are stored by
// content hash; the chain only ever carries the reference.
package ipfscontent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

const (
	pinPath            = "/pinning/pinFileToIPFS"
	defaultHTTPTimeout = 2 * time.Minute
	maxErrorBody       = 4 << 10
)

// ErrInvalidContentRef rejects a reference that is not a well-formed CIDv0.
var ErrInvalidContentRef = errors.New("invalid content reference")

// UploadError is a pinning request the service rejected.
type UploadError struct {
	Status  int
	Message string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("pinning service rejected upload: status %d: %s", e.Status, e.Message)
}

// Client talks to a Pinata-compatible pinning API.
type Client struct {
	endpoint string
	token    string
	httpc    *http.Client
	log      *slog.Logger
}

func NewClient(endpoint, token string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		httpc:    &http.Client{Timeout: defaultHTTPTimeout},
		log:      log.With("component", "ipfs"),
	}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Pin uploads data and returns its content reference. Pinning is idempotent
// on the service side: identical bytes always yield the identical reference.
func (c *Client) Pin(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidContentRef)
	}
	if strings.TrimSpace(filename) == "" {
		filename = "upload"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+pinPath, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinning request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &UploadError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var decoded pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("pinning response unreadable: %w", err)
	}
	if err := ValidateContentRef(decoded.IpfsHash); err != nil {
		return "", err
	}
	c.log.Info("evidence pinned", "ref", decoded.IpfsHash, "bytes", len(data))
	return decoded.IpfsHash, nil
}

// ValidateContentRef checks a CIDv0: base58, 34 decoded bytes, sha2-256
// multihash prefix. The registry contract stores the reference verbatim, so
// anything malformed is rejected before it reaches the chain.
func ValidateContentRef(ref string) error {
	if len(ref) != 46 || !strings.HasPrefix(ref, "Qm") {
		return fmt.Errorf("%w: %q", ErrInvalidContentRef, ref)
	}
	raw, err := base58.Decode(ref)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidContentRef, ref)
	}
	if len(raw) != 34 || raw[0] != 0x12 || raw[1] != 0x20 {
		return fmt.Errorf("%w: %q", ErrInvalidContentRef, ref)
	}
	return nil
}

// GatewayURL renders a public gateway link for a pinned reference.
func GatewayURL(ref string) string {
	return "https://gateway.pinata.cloud/ipfs/" + ref
}
