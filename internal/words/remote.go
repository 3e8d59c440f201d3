package words

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

const remoteTimeout = 10 * time.Second

var client = &fasthttp.Client{
	ReadTimeout:         remoteTimeout,
	WriteTimeout:        remoteTimeout,
	MaxIdleConnDuration: time.Minute,
}

// fetchRemote downloads a newline separated word list.
func fetchRemote(ctx context.Context, url string) ([]string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(remoteTimeout)
	}
	if err := client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}
	return scanWords(bytes.NewReader(resp.Body()))
}
