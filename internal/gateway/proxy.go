package gateway

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jack/url-shortener-platform/internal/middleware"
)

// forwardedHeaders copies the headers internal services are allowed to see:
// the bearer credential, the correlation id and the body content type.
func forwardedHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, name := range []string{"Authorization", middleware.RequestIDHeader, "Content-Type"} {
		if v := src.Get(name); v != "" {
			dst.Set(name, v)
		}
	}
	if dst.Get("Content-Type") == "" {
		dst.Set("Content-Type", "application/json")
	}
	return dst
}

// forward relays the inbound request to target and returns the downstream
// response with its body fully read.
func (g *Gateway) forward(c *gin.Context, client *http.Client, method, target string) (*http.Response, []byte, error) {
	var body io.Reader
	if c.Request.Body != nil {
		raw, err := c.GetRawData()
		if err != nil {
			return nil, nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), method, target, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header = forwardedHeaders(c.Request.Header)

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return resp, payload, nil
}

// passthrough mirrors the downstream status and body verbatim. Used for the
// user service, whose responses already carry the client-facing envelope.
func (g *Gateway) passthrough(c *gin.Context, client *http.Client, method, target string) {
	resp, payload, err := g.forward(c, client, method, target)
	if err != nil {
		respondUpstreamError(c, "Failed to connect to user service")
		return
	}

	c.Data(resp.StatusCode, "application/json", payload)
}
