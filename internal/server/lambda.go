package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// bufferedResponse collects a handler's response for the Lambda adapter.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

// HandleLambda serves an API Gateway HTTP API (payload format 2.0) event
// through the same routes as the HTTP server.
func (s *Server) HandleLambda(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return lambdaError(http.StatusBadRequest, "Invalid request", "body is not valid base64"), nil
		}
		body = decoded
	}

	method := event.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodPost
	}
	target := stagePath(event.RawPath, event.RequestContext.Stage)
	if event.RawQueryString != "" {
		target += "?" + event.RawQueryString
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return lambdaError(http.StatusBadRequest, "Invalid request", err.Error()), nil
	}
	for k, v := range event.Headers {
		req.Header.Set(k, v)
	}
	for _, c := range event.Cookies {
		req.Header.Add("Cookie", c)
	}
	if id := event.RequestContext.RequestID; id != "" && req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", id)
	}
	req.RemoteAddr = event.RequestContext.HTTP.SourceIP

	rec := &bufferedResponse{header: make(http.Header)}
	s.handler.ServeHTTP(rec, req)
	return rec.event(), nil
}

func (b *bufferedResponse) event() events.APIGatewayV2HTTPResponse {
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	resp := events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    make(map[string]string, len(b.header)),
	}
	for k := range b.header {
		resp.Headers[k] = b.header.Get(k)
	}
	if isText(b.header.Get("Content-Type")) {
		resp.Body = b.body.String()
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(b.body.Bytes())
		resp.IsBase64Encoded = true
	}
	return resp
}

// stagePath strips the stage prefix that HTTP APIs keep in rawPath for
// named stages.
func stagePath(raw, stage string) string {
	if raw == "" {
		return "/"
	}
	if stage != "" && stage != "$default" {
		prefix := "/" + stage
		if raw == prefix {
			return "/"
		}
		if strings.HasPrefix(raw, prefix+"/") {
			return raw[len(prefix):]
		}
	}
	return raw
}

func isText(contentType string) bool {
	return contentType == "" ||
		strings.HasPrefix(contentType, "text/") ||
		strings.HasPrefix(contentType, "application/json")
}

func lambdaError(status int, label, message string) events.APIGatewayV2HTTPResponse {
	rec := &bufferedResponse{header: make(http.Header)}
	for k, v := range corsHeaders {
		rec.header.Set(k, v)
	}
	writeJSON(rec, status, errorBody{Error: label, Message: message})
	return rec.event()
}
