package session

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xyangyan/CsdBERT/pkg/config"
)

var DebugLog func(string, ...interface{})

// Session wraps the HTTP client the launcher uses for hub downloads
// and release checks.
type Session struct {
	Client *http.Client
	Config *config.Config
}

type LoggingTransport struct {
	Transport http.RoundTripper
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if DebugLog != nil {
		DebugLog("requesting url: %s", req.URL.String())

		if len(req.Header) > 0 {
			var headers []string
			for k, v := range req.Header {
				if k != "User-Agent" {
					headers = append(headers, fmt.Sprintf("%s: %s", k, strings.Join(v, ", ")))
				}
			}
			if len(headers) > 0 {
				DebugLog("request headers: %s", strings.Join(headers, " | "))
			}
		}
	}

	resp, err := t.Transport.RoundTrip(req)

	if DebugLog != nil {
		if err != nil {
			DebugLog("request to %s failed: %v", req.URL.Host, err)
		} else {
			DebugLog("response for %s: status code %d", req.URL.String(), resp.StatusCode)

			if resp.StatusCode >= 400 && resp.Body != nil {
				bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 500))
				if readErr == nil && len(bodyBytes) > 0 {
					DebugLog("error response body: %s", string(bodyBytes))
				}
			}
		}
	}

	return resp, err
}

func New(cfg *config.Config) (*Session, error) {
	baseTransport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}

	var transport http.RoundTripper = baseTransport
	if DebugLog != nil {
		transport = &LoggingTransport{Transport: baseTransport}
	}

	client := &http.Client{
		Timeout:   time.Duration(cfg.DefaultSettings.Timeout) * time.Second,
		Transport: transport,
	}

	return &Session{
		Client: client,
		Config: cfg,
	}, nil
}
