package untis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/stemsi/untis-notifier/internal/apperr"
)

const jsonrpcVersion = "2.0"

// codeNotAuthenticated is the WebUntis fault for a missing or expired session.
const codeNotAuthenticated = -8520

type rpcRequest struct {
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	JSONRPC string      `json:"jsonrpc"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	ID      json.RawMessage `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// emptyParams encodes as {}.
type emptyParams struct{}

// call posts one JSON-RPC envelope and returns the raw result, which may be
// null; callers that need a value check it with isNull. An empty token sends
// the request without a session cookie.
func (c *Client) call(ctx context.Context, method string, params interface{}, token string) (json.RawMessage, error) {
	op := "untis." + method

	body, err := json.Marshal(rpcRequest{
		ID:      uuid.New().String(),
		Method:  method,
		Params:  params,
		JSONRPC: jsonrpcVersion,
	})
	if err != nil {
		return nil, apperr.New(apperr.ErrInternal, op, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.New(apperr.ErrTransport, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Cookie", "JSESSIONID="+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.ErrTransport, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.New(apperr.ErrTransport, op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Errorf(apperr.ErrTransport, op, "unexpected status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, apperr.New(apperr.ErrProtocol, op, fmt.Errorf("decode response: %w", err))
	}

	if rpcResp.Error != nil {
		if rpcResp.Error.Code == codeNotAuthenticated {
			return nil, apperr.New(apperr.ErrSessionRequired, op, rpcResp.Error)
		}
		return nil, apperr.New(apperr.ErrProtocol, op, rpcResp.Error)
	}

	return rpcResp.Result, nil
}

// isNull reports whether a result was absent or JSON null.
func isNull(result json.RawMessage) bool {
	trimmed := bytes.TrimSpace(result)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
