package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dropworks/pooldrop/service/chain"
	"github.com/dropworks/pooldrop/service/config"
	"github.com/dropworks/pooldrop/service/errors"
)

// HTTPClient is the JSON-over-HTTP implementation of Client.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	appID      string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg *config.Config) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.WalletAPIURL,
		apiKey:  cfg.WalletAPIKey,
		appID:   cfg.WalletAppID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type reqSignIn struct {
	Token string `json:"token"`
	AppID string `json:"appId"`
}

type resCreateLink struct {
	ID string `json:"id"`
}

type reqSignature struct {
	UserID string              `json:"userId"`
	AppID  string              `json:"appId"`
	Calls  []chain.CallRequest `json:"calls"`
}

type resSignature struct {
	RequestID string `json:"requestId"`
}

type resError struct {
	Error string `json:"error"`
}

func (c *HTTPClient) SignIn(ctx context.Context, token string) (*Profile, error) {
	profile := Profile{}
	if err := c.post(ctx, "/sessions", reqSignIn{Token: token, AppID: c.appID}, &profile); err != nil {
		return nil, err
	}
	if profile.UserID == "" {
		return nil, errors.ErrNotAuthorized
	}
	return &profile, nil
}

func (c *HTTPClient) CreateLink(ctx context.Context, token string, req LinkRequest) (string, error) {
	payload := struct {
		Token string `json:"token"`
		AppID string `json:"appId"`
		LinkRequest
	}{Token: token, AppID: c.appID, LinkRequest: req}

	res := resCreateLink{}
	if err := c.post(ctx, "/links", payload, &res); err != nil {
		return "", err
	}
	if res.ID == "" {
		return "", fmt.Errorf("wallet backend returned an empty link id")
	}
	return res.ID, nil
}

func (c *HTTPClient) RequestSignature(ctx context.Context, userID string, calls []chain.CallRequest) (string, error) {
	res := resSignature{}
	if err := c.post(ctx, "/signing-requests", reqSignature{UserID: userID, AppID: c.appID, Calls: calls}, &res); err != nil {
		return "", err
	}
	if res.RequestID == "" {
		return "", fmt.Errorf("signing service returned an empty request id")
	}
	return res.RequestID, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wallet backend request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.ErrNotAuthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := resError{}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("wallet backend error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("wallet backend error (%d) from %s", resp.StatusCode, path)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
