package lib

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"vms/src/config"
	"vms/src/types"
	"vms/src/utils"

	"github.com/redis/go-redis/v9"
)

const (
	accessTokenCacheKey = "mpesa:access_token"
	accessTokenCacheTTL = 50 * time.Minute // tokens are valid ~1h
	maxTransactionLimit = 999999
)

// DarajaClient talks to the Safaricom Daraja API: OAuth token exchange,
// STK-push initiation and STK status query. It never touches the ledger.
type DarajaClient struct {
	cfg  *config.DarajaConfig
	http *http.Client
}

var darajaClient *DarajaClient

func GetDarajaClient() (*DarajaClient, error) {
	if darajaClient != nil {
		return darajaClient, nil
	}
	cfg, err := config.NewDarajaConfigFromEnv()
	if err != nil {
		return nil, err
	}
	darajaClient = NewDarajaClientWithConfig(cfg)
	return darajaClient, nil
}

func NewDarajaClientWithConfig(cfg *config.DarajaConfig) *DarajaClient {
	return &DarajaClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// NewDarajaClient Replace the client instance, used by tests.
func NewDarajaClient(c *DarajaClient) *DarajaClient {
	darajaClient = c
	return darajaClient
}

// AccessToken returns a bearer token for the Daraja API, reusing a cached one
// when redis is available. Cache misses and cache absence both fall through
// to a fresh token exchange.
func (c *DarajaClient) AccessToken(ctx context.Context) (string, error) {
	rd := GetRedisClient()
	if rd != nil {
		cached, err := rd.Get(ctx, accessTokenCacheKey).Result()
		if err == nil && cached != "" {
			return cached, nil
		} else if err != nil && err != redis.Nil {
			log.Printf("[daraja] token cache read failed: %s\n", err.Error())
		}
	}

	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", c.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &types.GatewayError{Msg: err.Error()}
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &types.GatewayError{Msg: fmt.Sprintf("failed to get OAuth token: %s", err.Error())}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &types.GatewayError{
			Msg:  fmt.Sprintf("OAuth token request returned status %d", resp.StatusCode),
			Body: string(body),
		}
	}
	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", &types.GatewayError{Msg: "invalid OAuth response body", Body: string(body)}
	}
	if tokenResp.AccessToken == "" {
		return "", &types.GatewayError{Msg: "invalid OAuth response: missing access_token", Body: string(body)}
	}

	if rd != nil {
		if err := rd.SetEx(ctx, accessTokenCacheKey, tokenResp.AccessToken, accessTokenCacheTTL).Err(); err != nil {
			log.Printf("[daraja] token cache write failed: %s\n", err.Error())
		}
	}
	return tokenResp.AccessToken, nil
}

// generatePassword builds the request signature:
// base64(shortcode + passkey + timestamp).
func (c *DarajaClient) generatePassword(ts string) string {
	raw := fmt.Sprintf("%s%s%s", c.cfg.Shortcode, c.cfg.Passkey, ts)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// InitiateStkPush submits an STK-push request for the given phone and amount.
// The provider caps AccountReference at 12 and TransactionDesc at 13
// characters; both are truncated, not rejected.
func (c *DarajaClient) InitiateStkPush(ctx context.Context, phoneNumber string, amount int64, accountReference, transactionDesc string) (*types.StkPushAck, error) {
	phone, err := utils.NormalizePhoneNumber(phoneNumber)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, types.NewValidationError("amount must be greater than 0")
	}
	if amount > maxTransactionLimit {
		return nil, types.NewValidationError("amount exceeds the M-Pesa transaction limit")
	}
	if transactionDesc == "" {
		transactionDesc = "Payment"
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	ts := time.Now().UTC().Format(config.MPESA_TIMESTAMP_FORMAT)
	payload := map[string]any{
		"BusinessShortCode": c.cfg.Shortcode,
		"Password":          c.generatePassword(ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount,
		"PartyA":            phone,
		"PartyB":            c.cfg.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  truncate(accountReference, 12),
		"TransactionDesc":   truncate(transactionDesc, 13),
	}

	var ack types.StkPushAck
	if err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &ack); err != nil {
		return nil, err
	}
	if ack.ResponseCode != "0" {
		return nil, &types.GatewayError{
			Msg:  fmt.Sprintf("STK push rejected: %s", ack.ResponseDescription),
			Code: ack.ResponseCode,
		}
	}
	return &ack, nil
}

// QueryStkStatus asks the provider for the current state of a previously
// initiated request. Used by the pending-payment sweep when a callback never
// arrived.
func (c *DarajaClient) QueryStkStatus(ctx context.Context, checkoutRequestID string) (*types.StkQueryResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	ts := time.Now().UTC().Format(config.MPESA_TIMESTAMP_FORMAT)
	payload := map[string]any{
		"BusinessShortCode": c.cfg.Shortcode,
		"Password":          c.generatePassword(ts),
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}
	var status types.StkQueryResponse
	if err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *DarajaClient) postJSON(ctx context.Context, path, token string, payload map[string]any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return &types.GatewayError{Msg: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return &types.GatewayError{Msg: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &types.GatewayError{Msg: fmt.Sprintf("request to %s failed: %s", path, err.Error())}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &types.GatewayError{
			Msg:  fmt.Sprintf("request to %s returned status %d", path, resp.StatusCode),
			Body: string(body),
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &types.GatewayError{Msg: "invalid provider response body", Body: string(body)}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
