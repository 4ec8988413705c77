package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/picklr-io/ocrstack/internal/ocr"
)

// requestError is an input problem reported to the caller as a 400.
type requestError struct {
	label   string
	message string
}

func (e *requestError) Error() string {
	return e.label + ": " + e.message
}

var errNoImage = &requestError{
	label:   "No image provided",
	message: "Send a multipart 'file' field or a base64 'image' JSON field",
}

// imageRequest is the decoded body of an extraction request.
type imageRequest struct {
	Image []byte
	Title string
	Test  bool
}

type jsonImageRequest struct {
	Image string `json:"image"`
	Title string `json:"title"`
	Test  bool   `json:"test"`
}

// readImageRequest accepts a multipart upload (field "file" or "image") or
// a JSON body with a base64 image that may carry a data URL header.
func (s *Server) readImageRequest(w http.ResponseWriter, r *http.Request) (*imageRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return s.readMultipart(w, r)
	}

	var body jsonImageRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		return nil, err
	}
	req := &imageRequest{Title: body.Title, Test: body.Test}
	if req.Test {
		return req, nil
	}
	if strings.TrimSpace(body.Image) == "" {
		return nil, errNoImage
	}
	img, err := ocr.DecodeImage(body.Image)
	if err != nil {
		return nil, &requestError{label: "Invalid image data", message: ocr.Details(err)}
	}
	req.Image = img
	return req, nil
}

func (s *Server) readMultipart(w http.ResponseWriter, r *http.Request) (*imageRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(s.maxBody); err != nil {
		return nil, &requestError{label: "Invalid form data", message: err.Error()}
	}

	req := &imageRequest{Title: r.FormValue("title")}
	req.Test, _ = strconv.ParseBool(r.FormValue("test"))
	if req.Test {
		return req, nil
	}

	var file io.ReadCloser
	for _, field := range []string{"file", "image"} {
		if f, _, err := r.FormFile(field); err == nil {
			file = f
			break
		}
	}
	if file == nil {
		return nil, errNoImage
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, &requestError{label: "Invalid form data", message: err.Error()}
	}
	if len(data) == 0 {
		return nil, errNoImage
	}
	req.Image = data
	return req, nil
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &requestError{label: "Request too large", message: fmt.Sprintf("body exceeds %d bytes", maxErr.Limit)}
		}
		return &requestError{label: "Invalid request", message: err.Error()}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &requestError{label: "Invalid JSON", message: err.Error()}
	}
	return nil
}
