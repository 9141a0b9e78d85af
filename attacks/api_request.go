package attacks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BBVA/chaos-monkey-engine/plugin"
)

var ErrInvalidArgs = errors.New("invalid attack args")

const requestTimeout = 30 * time.Second

// ApiRequest 向任意接口发送一次请求，payload以表单编码发送
var ApiRequest = &plugin.AttackType{
	Name: "ApiRequest",
	Schema: `{
	"type": "object",
	"properties": {
		"ref": {"type": "string"},
		"args": {
			"type": "object",
			"properties": {
				"endpoint": {"type": "string"},
				"method": {"type": "string"},
				"payload": {"type": "object"},
				"headers": {"type": "object"}
			},
			"required": ["endpoint", "method", "payload", "headers"]
		}
	}
}`,
	Example: map[string]any{
		"ref": "api_request:ApiRequest",
		"args": map[string]any{
			"endpoint": "http://localhost:4500",
			"method":   "GET",
			"payload":  map[string]any{"test": "1"},
			"headers":  map[string]any{"X-CUSTOM-HEADER": "test"},
		},
	},
	New: newAPIRequest,
}

type apiRequest struct {
	client   *http.Client
	endpoint string
	method   string
	payload  url.Values
	headers  http.Header
}

func newAPIRequest(args map[string]any) (plugin.Attack, error) {
	endpoint, _ := args["endpoint"].(string)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidArgs)
	}
	method, _ := args["method"].(string)
	if method == "" {
		return nil, fmt.Errorf("%w: method is required", ErrInvalidArgs)
	}

	a := &apiRequest{
		client:   &http.Client{Timeout: requestTimeout},
		endpoint: endpoint,
		method:   strings.ToUpper(method),
		payload:  url.Values{},
		headers:  http.Header{},
	}
	if payload, ok := args["payload"].(map[string]any); ok {
		for k, v := range payload {
			a.payload.Set(k, fmt.Sprint(v))
		}
	}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			a.headers.Set(k, fmt.Sprint(v))
		}
	}
	return a, nil
}

// Run 只有请求无法发出时返回错误，响应状态码不影响结果
func (a *apiRequest) Run(ctx context.Context) error {
	var body io.Reader
	if len(a.payload) > 0 {
		body = strings.NewReader(a.payload.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, a.method, a.endpoint, body)
	if err != nil {
		return err
	}
	req.Header = a.headers.Clone()
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
