// Package server exposes the canonical /v1 HTTP surface. It is deliberately
// thin: parse the target headers, decode the canonical body, dispatch to the
// provider gateway, and write the canonical response or error envelope.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
	"github.com/yduwcui/bedrock-gateway/internal/bedrock"
)

// maxRequestBody bounds canonical JSON request bodies. File uploads stream
// and are not subject to this limit.
const maxRequestBody = 32 << 20

// Server routes canonical operations to the provider gateway.
type Server struct {
	gateway *bedrock.Gateway
	logger  *slog.Logger
}

// New constructs a Server with its own gateway instance.
func New(logger *slog.Logger) *Server {
	return &Server{gateway: bedrock.NewGateway(logger), logger: logger}
}

// Handler returns the /v1 route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.chatCompletions)
	mux.HandleFunc("POST /v1/completions", s.completions)
	mux.HandleFunc("POST /v1/embeddings", s.embeddings)
	mux.HandleFunc("POST /v1/images/generations", s.imageGenerations)

	mux.HandleFunc("POST /v1/batches", s.createBatch)
	mux.HandleFunc("GET /v1/batches", s.listBatches)
	mux.HandleFunc("GET /v1/batches/{id}", s.retrieveBatch)
	mux.HandleFunc("POST /v1/batches/{id}/cancel", s.cancelBatch)
	mux.HandleFunc("GET /v1/batches/{id}/output", s.batchOutput)

	mux.HandleFunc("POST /v1/fine_tuning/jobs", s.createFineTune)
	mux.HandleFunc("GET /v1/fine_tuning/jobs", s.listFineTunes)
	mux.HandleFunc("GET /v1/fine_tuning/jobs/{id}", s.retrieveFineTune)
	mux.HandleFunc("POST /v1/fine_tuning/jobs/{id}/cancel", s.cancelFineTune)

	mux.HandleFunc("POST /v1/files", s.uploadFile)
	mux.HandleFunc("GET /v1/files", s.listFiles)
	mux.HandleFunc("GET /v1/files/{id}", s.retrieveFile)
	mux.HandleFunc("GET /v1/files/{id}/content", s.retrieveFileContent)
	mux.HandleFunc("DELETE /v1/files/{id}", s.deleteFile)
	return mux
}

// writeError renders the canonical error envelope. Unexpected errors become
// 502 invalid_provider_response envelopes rather than leaking internals.
// Strict OpenAI compliance drops the provider tag from the envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var gerr *bedrock.GatewayError
	if !errors.As(err, &gerr) {
		t := openai.ErrorTypeInvalidProviderResponse
		gerr = &bedrock.GatewayError{
			StatusCode: http.StatusBadGateway,
			Response: openai.ErrorResponse{
				Error:    openai.ErrorDetail{Message: err.Error(), Type: &t},
				Provider: bedrock.ProviderName,
			},
		}
	}
	resp := gerr.Response
	if bedrock.StrictFromHeaders(r.Header) {
		resp.Provider = ""
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gerr.StatusCode)
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		s.logger.Error("write error response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", slog.String("error", err.Error()))
	}
}

// target parses the x-bgw-* headers; on failure the error envelope is
// already written.
func (s *Server) target(w http.ResponseWriter, r *http.Request) (*bedrock.Target, bool) {
	t, err := bedrock.TargetFromHeaders(r.Header)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return t, true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return body, true
}

func (s *Server) chatCompletions(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	if gjson.GetBytes(body, "stream").Bool() {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if err := s.gateway.ChatCompletionStream(r.Context(), t, body, w); err != nil {
			// Headers are already on the wire; the stream translator has
			// terminated the SSE stream. Log and stop.
			s.logger.Error("chat completion stream", slog.String("error", err.Error()))
		}
		return
	}

	resp, err := s.gateway.ChatCompletion(r.Context(), t, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) completions(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	resp, err := s.gateway.Completion(r.Context(), t, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) embeddings(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	var req openai.EmbeddingRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.gateway.Embeddings(r.Context(), t, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) imageGenerations(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	var req openai.ImageGenerationRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.gateway.GenerateImage(r.Context(), t, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

// decode unmarshals a canonical JSON body, rendering a 400 envelope on
// malformed input.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		t := openai.ErrorTypeInvalidRequest
		s.writeError(w, r, &bedrock.GatewayError{
			StatusCode: http.StatusBadRequest,
			Response: openai.ErrorResponse{
				Error:    openai.ErrorDetail{Message: err.Error(), Type: &t},
				Provider: bedrock.ProviderName,
			},
		})
		return false
	}
	return true
}

func (s *Server) createBatch(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	var req openai.CreateBatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.gateway.CreateBatch(r.Context(), t, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) listBatches(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	resp, err := s.gateway.ListBatches(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) retrieveBatch(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	resp, err := s.gateway.RetrieveBatch(r.Context(), t, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) cancelBatch(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	resp, err := s.gateway.CancelBatch(r.Context(), t, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) batchOutput(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := s.gateway.GetBatchOutput(r.Context(), t, r.PathValue("id"), w); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) createFineTune(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	var req openai.CreateFineTuningJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.gateway.CreateFineTune(r.Context(), t, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) listFineTunes(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	resp, err := s.gateway.ListFineTunes(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) retrieveFineTune(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	resp, err := s.gateway.RetrieveFineTune(r.Context(), t, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) cancelFineTune(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	resp, err := s.gateway.CancelFineTune(r.Context(), t, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	reader, err := r.MultipartReader()
	if err != nil {
		tp := openai.ErrorTypeInvalidRequest
		s.writeError(w, r, &bedrock.GatewayError{
			StatusCode: http.StatusBadRequest,
			Response: openai.ErrorResponse{
				Error:    openai.ErrorDetail{Message: "malformed multipart body: " + err.Error(), Type: &tp},
				Provider: bedrock.ProviderName,
			},
		})
		return
	}

	// Walk the form parts without buffering: the purpose field may precede
	// the file part; exactly one file part is accepted.
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		switch part.FormName() {
		case "purpose":
			value, err := io.ReadAll(io.LimitReader(part, 256))
			if err == nil && t.FilePurpose == "" {
				t.FilePurpose = string(value)
			}
		case "file":
			resp, err := s.gateway.UploadFile(r.Context(), t, part.FileName(), part)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			s.writeJSON(w, resp)
			return
		}
	}
	tp := openai.ErrorTypeInvalidRequest
	s.writeError(w, r, &bedrock.GatewayError{
		StatusCode: http.StatusBadRequest,
		Response: openai.ErrorResponse{
			Error:    openai.ErrorDetail{Message: "multipart body has no file part", Type: &tp},
			Provider: bedrock.ProviderName,
		},
	})
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	if _, err := s.gateway.ListFiles(r.Context(), t); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) retrieveFile(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	resp, err := s.gateway.RetrieveFile(r.Context(), t, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) retrieveFileContent(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := s.gateway.RetrieveFileContent(r.Context(), t, r.PathValue("id"), w); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	if _, err := s.gateway.DeleteFile(r.Context(), t, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
	}
}
