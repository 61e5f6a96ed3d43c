// Package bank é o cliente HTTP do bank, o escrow que custodia o pool da casa.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	bankdto "github.com/radieske/vrf-wager-engine/internal/wager-service/bank/dto"
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

func (c *Client) IsAllowedToken(ctx context.Context, asset common.Address) (bool, error) {
	var out bankdto.TokenResponse
	if err := c.do(ctx, http.MethodGet, "/bank/tokens/"+asset.Hex(), nil, &out); err != nil {
		return false, err
	}
	return out.Allowed, nil
}

func (c *Client) GetMaxBetAmount(ctx context.Context, asset common.Address, multiplier uint32) (*big.Int, error) {
	q := url.Values{"multiplier": {strconv.FormatUint(uint64(multiplier), 10)}}
	var out bankdto.MaxBetResponse
	if err := c.do(ctx, http.MethodGet, "/bank/tokens/"+asset.Hex()+"/max-bet?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.MaxBetAmount == nil {
		return new(big.Int), nil
	}
	return out.MaxBetAmount, nil
}

func (c *Client) Payout(ctx context.Context, user, asset common.Address, profit, fee *big.Int) error {
	return c.do(ctx, http.MethodPost, "/bank/payout", bankdto.PayoutRequest{User: user, Asset: asset, Profit: profit, Fee: fee}, nil)
}

func (c *Client) CashIn(ctx context.Context, asset common.Address, amount *big.Int) error {
	return c.do(ctx, http.MethodPost, "/bank/cash-in", bankdto.CashInRequest{Asset: asset, Amount: amount}, nil)
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
		return fmt.Errorf("bank %s %s http %d", method, path, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
