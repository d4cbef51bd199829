package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/venadolabs/chanbind/domains/capability"
	domainGateway "github.com/venadolabs/chanbind/domains/gateway"
	"github.com/venadolabs/chanbind/domains/provider"
)

const defaultTimeout = 10 * time.Second

// ClientError is the typed error the gateway client surfaces: message,
// HTTP status code and a machine code parsed from the response body.
type ClientError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
}

func (e *ClientError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Code)
	}
	return "gateway: " + e.Message
}

// Client talks to the external gateway service over HTTP.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

type Config struct {
	BaseURL        string
	APIToken       string
	RequestTimeout time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ClientError{Message: err.Error(), StatusCode: 0, Code: "GATEWAY_UNREACHABLE"}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ClientError{Message: err.Error(), StatusCode: resp.StatusCode}
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		if eb.Message == "" {
			eb.Message = strings.TrimSpace(string(data))
		}
		logrus.Debugf("[Gateway] %s %s -> %d: %s", method, path, resp.StatusCode, eb.Message)
		return &ClientError{Message: eb.Message, StatusCode: resp.StatusCode, Code: eb.Code}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &ClientError{Message: "invalid response body: " + err.Error(), StatusCode: resp.StatusCode}
		}
	}
	return nil
}

func (c *Client) GetCapabilities(ctx context.Context) (capability.Snapshot, error) {
	var snap capability.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, "/v1/capabilities", nil, &snap); err != nil {
		return capability.Snapshot{}, err
	}
	snap.FetchedAt = time.Now()
	return snap, nil
}

func (c *Client) GetWeComAccounts(ctx context.Context) ([]capability.WeComAccount, error) {
	var out struct {
		Items []capability.WeComAccount `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/wecom/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

type sessionStatusBody struct {
	GatewayStatus string                 `json:"gateway_status"`
	Session       *domainGateway.Session `json:"session"`
	BlockedReason string                 `json:"blocked_reason,omitempty"`
}

func (c *Client) GetSessionStatus(ctx context.Context) (*domainGateway.Session, domainGateway.ConnectivityStatus, error) {
	var out sessionStatusBody
	if err := c.doJSON(ctx, http.MethodGet, "/v1/session/status", nil, &out); err != nil {
		return nil, domainGateway.ConnectivityError, err
	}

	status := domainGateway.ConnectivityStatus(out.GatewayStatus)
	switch status {
	case domainGateway.ConnectivityReady, domainGateway.ConnectivityConnecting, domainGateway.ConnectivityError:
	default:
		status = domainGateway.ConnectivityUnknown
	}
	return out.Session, status, nil
}

func (c *Client) StartSession(ctx context.Context, p provider.Provider) (*domainGateway.Session, error) {
	var out struct {
		Session *domainGateway.Session `json:"session"`
	}
	body := map[string]string{"provider": string(p)}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/session/start", body, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

func (c *Client) StopSession(ctx context.Context, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	return c.doJSON(ctx, http.MethodPost, "/v1/session/stop", body, nil)
}

func (c *Client) GetPeerCandidates(ctx context.Context, p provider.Provider, sessionID string, q domainGateway.PeerQuery) (domainGateway.PeerCandidateResult, error) {
	var out domainGateway.PeerCandidateResult

	path := ""
	switch p {
	case provider.ProviderWhatsApp:
		path = "/v1/whatsapp/personal/peers"
	case provider.ProviderWeChat:
		path = "/v1/wechat/personal/peers"
	case provider.ProviderDiscord:
		path = "/v1/discord/peers"
	case provider.ProviderTelegram:
		path = "/v1/telegram/peers"
	default:
		return out, &ClientError{Message: "peer discovery not supported for provider " + string(p), StatusCode: http.StatusBadRequest, Code: "UNSUPPORTED_PROVIDER"}
	}

	query := "?include_groups=" + strconv.FormatBool(q.IncludeGroups)
	if q.Limit > 0 {
		query += "&limit=" + strconv.Itoa(q.Limit)
	}
	if sessionID != "" {
		query += "&session_id=" + sessionID
	}

	if err := c.doJSON(ctx, http.MethodGet, path+query, nil, &out); err != nil {
		return domainGateway.PeerCandidateResult{}, err
	}
	return out, nil
}

// MapBlockedReason turns the gateway's free-text blocked reason into a
// structured code. The known reason strings live here and nowhere else, so a
// gateway that starts returning codes directly needs a change in this
// function only.
func MapBlockedReason(reason string) domainGateway.BlockedReasonCode {
	if reason == "" {
		return domainGateway.ReasonNone
	}
	lower := strings.ToLower(reason)
	if strings.Contains(lower, "personal mode") && strings.Contains(lower, "disabled") {
		return domainGateway.ReasonPersonalModeDisabled
	}
	if strings.Contains(lower, "unreachable") || strings.Contains(lower, "connection") {
		return domainGateway.ReasonGatewayError
	}
	return domainGateway.ReasonSessionNotReady
}
