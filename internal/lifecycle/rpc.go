package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

const defaultGroup = "group0"

// RPCProber queries the node json-rpc endpoint
type RPCProber struct {
	url   string
	group string
	http  *http.Client
	id    atomic.Int64
}

// NewRPCProber creates a prober for the node rpc at url
func NewRPCProber(url string) *RPCProber {
	return &RPCProber{
		url:   url,
		group: defaultGroup,
		http:  &http.Client{Timeout: 5 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// BlockNumber returns the latest block height
func (p *RPCProber) BlockNumber(ctx context.Context) (int64, error) {
	result, err := p.call(ctx, "getBlockNumber", p.group, "")
	if err != nil {
		return 0, err
	}

	return parseNumber(result)
}

// PeerCount returns the number of connected peers
func (p *RPCProber) PeerCount(ctx context.Context) (int, error) {
	result, err := p.call(ctx, "getPeers", p.group)
	if err != nil {
		return 0, err
	}

	var list []json.RawMessage
	if err := json.Unmarshal(result, &list); err == nil {
		return len(list), nil
	}

	var info struct {
		Peers []json.RawMessage `json:"peers"`
	}
	if err := json.Unmarshal(result, &info); err != nil {
		return 0, errors.Wrap(err, "unexpected getPeers result")
	}
	return len(info.Peers), nil
}

func (p *RPCProber) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: p.id.Add(1)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, errors.Errorf("%s failed with status code: %d", method, resp.StatusCode)
	}

	var res rpcResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Wrapf(err, "malformed %s response", method)
	}
	if res.Error != nil {
		return nil, errors.Errorf("%s failed: %s (%d)", method, res.Error.Message, res.Error.Code)
	}

	return res.Result, nil
}

// parseNumber accepts plain numbers, decimal strings and hex strings
func parseNumber(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errors.Errorf("unexpected block number %s", raw)
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
