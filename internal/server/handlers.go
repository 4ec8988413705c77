package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/picklr-io/ocrstack/internal/document"
	"github.com/picklr-io/ocrstack/internal/ocr"
	"github.com/picklr-io/ocrstack/internal/store"
)

type extractResponse struct {
	Text     string       `json:"text"`
	Metadata ocr.Metadata `json:"metadata"`
	Status   string       `json:"status"`
}

type detailedResponse struct {
	extractResponse
	IndividualTexts  []string  `json:"individual_texts"`
	ConfidenceScores []float64 `json:"confidence_scores"`
	TotalWords       int       `json:"total_words"`
}

type documentResponse struct {
	Message     string        `json:"message"`
	Filename    string        `json:"filename"`
	DownloadURL string        `json:"download_url"`
	Text        string        `json:"text,omitempty"`
	WordCount   *int          `json:"word_count,omitempty"`
	Metadata    *ocr.Metadata `json:"metadata,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "OCR API running",
		"engine":  s.pipeline.Engine().Name(),
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.extract(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newExtractResponse(res))
}

func (s *Server) handleExtractDetailed(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.extract(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, detailedResponse{
		extractResponse:  newExtractResponse(res),
		IndividualTexts:  nonNil(res.Fragments),
		ConfidenceScores: nonNilF(res.Confidences),
		TotalWords:       res.Count(),
	})
}

func (s *Server) handleProcessToWord(w http.ResponseWriter, r *http.Request) {
	res, req, ok := s.extract(w, r)
	if !ok {
		return
	}
	if res.NoText {
		writeError(w, http.StatusBadRequest, "No text found", res.Text)
		return
	}

	words := res.WordCount()
	name, ok := s.saveDocument(w, r, document.Document{
		Title:     req.Title,
		Text:      res.Text,
		WordCount: words,
		Engine:    res.Metadata.ProcessingMethod,
	})
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, documentResponse{
		Message:     "Image processed and document created",
		Filename:    name,
		DownloadURL: downloadURL(name),
		Text:        res.Text,
		WordCount:   &words,
		Metadata:    &res.Metadata,
	})
}

type createWordRequest struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

func (s *Server) handleCreateWord(w http.ResponseWriter, r *http.Request) {
	var body createWordRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.writeRequestError(w, err)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "No text provided", "The 'text' field must not be empty")
		return
	}

	name, ok := s.saveDocument(w, r, document.Document{
		Title:     body.Title,
		Text:      body.Text,
		WordCount: len(strings.Fields(body.Text)),
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{
		Message:     "Document created",
		Filename:    name,
		DownloadURL: downloadURL(name),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	data, err := s.store.Get(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidName) {
		writeError(w, http.StatusNotFound, "File not found", name)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("filename", name).Msg("failed to load document")
		writeError(w, http.StatusInternalServerError, "Download failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", document.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// extract reads the request and runs the pipeline, writing the error
// response itself when it returns false.
func (s *Server) extract(w http.ResponseWriter, r *http.Request) (*ocr.Result, *imageRequest, bool) {
	req, err := s.readImageRequest(w, r)
	if err != nil {
		s.writeRequestError(w, err)
		return nil, nil, false
	}
	if req.Test {
		return ocr.TestResult(), req, true
	}

	res, err := s.pipeline.Extract(r.Context(), req.Image)
	if err != nil {
		if errors.Is(err, ocr.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "Invalid image data", ocr.Details(err))
			return nil, nil, false
		}
		s.log.Error().Err(err).Msg("extraction failed")
		writeError(w, http.StatusInternalServerError, "OCR processing failed", ocr.Details(err))
		return nil, nil, false
	}
	return res, req, true
}

func (s *Server) saveDocument(w http.ResponseWriter, r *http.Request, doc document.Document) (string, bool) {
	data, err := document.Render(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Document generation failed", err.Error())
		return "", false
	}
	name := document.NewFilename()
	if err := s.store.Put(r.Context(), name, data, document.ContentType); err != nil {
		s.log.Error().Err(err).Str("store", s.store.String()).Msg("failed to store document")
		writeError(w, http.StatusInternalServerError, "Document generation failed", err.Error())
		return "", false
	}
	s.log.Info().Str("filename", name).Int("words", doc.WordCount).Msg("document created")
	return name, true
}

func (s *Server) writeRequestError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeError(w, http.StatusBadRequest, reqErr.label, reqErr.message)
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
}

func newExtractResponse(res *ocr.Result) extractResponse {
	return extractResponse{Text: res.Text, Metadata: res.Metadata, Status: "success"}
}

func downloadURL(name string) string {
	return "/download/" + name
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilF(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
