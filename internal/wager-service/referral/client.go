// Package referral é o cliente HTTP do programa de indicações.
package referral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	refdto "github.com/radieske/vrf-wager-engine/internal/wager-service/referral/dto"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) HasReferrer(ctx context.Context, user common.Address) (bool, error) {
	var out refdto.ReferrerResponse
	if err := c.do(ctx, http.MethodGet, "/referrals/"+user.Hex(), nil, &out); err != nil {
		return false, err
	}
	return out.HasReferrer, nil
}

func (c *Client) AddReferrer(ctx context.Context, user, referrer common.Address) error {
	return c.do(ctx, http.MethodPost, "/referrals", refdto.AddReferrerRequest{User: user, Referrer: referrer}, nil)
}

func (c *Client) UpdateReferrerActivity(ctx context.Context, user common.Address) error {
	return c.do(ctx, http.MethodPost, "/referrals/"+user.Hex()+"/activity", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("referral %s %s http %d", method, path, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
