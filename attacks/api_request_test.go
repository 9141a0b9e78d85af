package attacks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/BBVA/chaos-monkey-engine/domain"
	"github.com/BBVA/chaos-monkey-engine/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApiRequestRun(t *testing.T) {
	type received struct {
		method string
		header string
		form   url.Values
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		got <- received{method: r.Method, header: r.Header.Get("X-Custom-Header"), form: form}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	attack, err := ApiRequest.New(map[string]any{
		"endpoint": srv.URL,
		"method":   "post",
		"payload":  map[string]any{"test": "1"},
		"headers":  map[string]any{"X-CUSTOM-HEADER": "test"},
	})
	require.NoError(t, err)

	// 响应状态码不影响结果
	require.NoError(t, attack.Run(context.Background()))
	r := <-got
	assert.Equal(t, http.MethodPost, r.method)
	assert.Equal(t, "test", r.header)
	assert.Equal(t, "1", r.form.Get("test"))
}

func TestApiRequestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	attack, err := ApiRequest.New(map[string]any{"endpoint": endpoint, "method": "GET"})
	require.NoError(t, err)
	assert.Error(t, attack.Run(context.Background()))
}

func TestApiRequestArgs(t *testing.T) {
	_, err := ApiRequest.New(map[string]any{"method": "GET"})
	assert.ErrorIs(t, err, ErrInvalidArgs)
	_, err = ApiRequest.New(map[string]any{"endpoint": "http://localhost"})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

// 每个类型的示例都要满足自己的schema
func TestExamplesMatchSchemas(t *testing.T) {
	for _, unit := range Units() {
		for _, member := range unit.Members {
			attack, ok := member.(*plugin.AttackType)
			require.True(t, ok)
			ref := unit.Name + ":" + attack.Name

			t.Run(ref, func(t *testing.T) {
				assert.Equal(t, ref, attack.Example["ref"])
				args, ok := attack.Example["args"].(map[string]any)
				require.True(t, ok)
				doc, err := domain.PluginConfig{Ref: ref, Args: args}.Document()
				require.NoError(t, err)
				assert.NoError(t, attack.Validate(ref, doc))
			})
		}
	}
}

func TestApiRequestSchema(t *testing.T) {
	err := ApiRequest.Validate("api_request:ApiRequest", map[string]any{
		"ref":  "api_request:ApiRequest",
		"args": map[string]any{"endpoint": "http://localhost"},
	})
	assert.Error(t, err)
}
