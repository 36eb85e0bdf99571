package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nkurosawa/taskrelay/internal/model"
)

// DefaultTimeout bounds every outbound provider call when the config does
// not specify one. Expiry surfaces as a *TransportError, never a hang.
const DefaultTimeout = 30 * time.Second

// RegionConfig names the provider deployment for one region. The Host
// header on every request must match HostHeader or the provider's edge
// rejects the call.
type RegionConfig struct {
	BaseDomain string
	HostHeader string
}

// Config holds everything the client needs to talk to the provider. It is
// injected at construction; the client keeps no process-wide state.
type Config struct {
	APIKey  string
	Regions map[model.Region]RegionConfig

	// AcceptCodes are non-zero envelope codes the provider documents as
	// informational. They are treated as acceptance, not rejection.
	AcceptCodes map[int]bool

	Timeout        time.Duration
	MaxUploadBytes int64
}

// Client issues JSON-envelope calls against the provider's regional
// deployments. It is safe for concurrent use.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

// NewClient creates a provider client. The underlying HTTP client carries
// the configured per-call timeout and is shared by all operations.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// envelope is the provider's generic response wrapper. Code 0 is success;
// Data's shape depends on the endpoint.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// postJSON sends one JSON request to the given path on the region's
// deployment and decodes the response envelope.
func (c *Client) postJSON(ctx context.Context, region model.Region, path string, body any) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	rc, ok := c.cfg.Regions[region]
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown region %q", region)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL(rc)+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, rc, path)
}

// do executes a prepared request against one regional deployment, forcing
// the Host header the provider expects, and interprets the envelope code.
func (c *Client) do(req *http.Request, rc RegionConfig, path string) (*envelope, error) {
	req.Host = rc.HostHeader
	requestID := model.NewRequestID()
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		recordRequest(path, outcomeTransport)
		return nil, &TransportError{Op: "POST " + path, Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		recordRequest(path, outcomeTransport)
		return nil, &TransportError{Op: "decode " + path, Err: err}
	}

	if env.Code != 0 {
		if c.cfg.AcceptCodes[env.Code] {
			c.logger.Info("provider returned informational code",
				"path", path,
				"code", env.Code,
				"msg", env.Msg,
				"request_id", requestID,
			)
		} else {
			recordRequest(path, outcomeRejected)
			return nil, &UpstreamRejection{Code: env.Code, Message: env.Msg}
		}
	}

	recordRequest(path, outcomeOK)
	return &env, nil
}

// baseURL derives the deployment's URL prefix. BaseDomain is normally a
// bare host; an explicit scheme is honored when present.
func baseURL(rc RegionConfig) string {
	if strings.Contains(rc.BaseDomain, "://") {
		return rc.BaseDomain
	}
	return "https://" + rc.BaseDomain
}

// decodeData unmarshals an envelope's data field into out.
func decodeData(env *envelope, out any) error {
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &TransportError{Op: "decode envelope data", Err: err}
	}
	return nil
}

// decodeStatus reads the raw status string out of a status envelope. The
// provider is inconsistent about the shape: some deployments answer a bare
// JSON string ("SUCCESS"), others an object {"status": "SUCCESS"}. Both
// engines must accept both shapes, since a cross-kind fallback can land a
// lookup on either one.
func decodeStatus(env *envelope) (string, error) {
	var raw string
	if err := json.Unmarshal(env.Data, &raw); err == nil {
		return raw, nil
	}
	var obj struct {
		Status string `json:"status"`
	}
	if err := decodeData(env, &obj); err != nil {
		return "", err
	}
	return obj.Status, nil
}
