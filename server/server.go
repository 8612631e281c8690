package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"auto_linkedin_post_publisher/content"
	"auto_linkedin_post_publisher/discovery"
	"auto_linkedin_post_publisher/draft"
	"auto_linkedin_post_publisher/failure"
	"auto_linkedin_post_publisher/pipeline"
)

const (
	maxBodyBytes       = 1 << 20
	defaultGenTimeout  = 5 * time.Minute
	defaultPubTimeout  = 3 * time.Minute
	defaultReadTimeout = 30 * time.Second
)

// Server exposes the draft workflow as a small JSON API.
type Server struct {
	pipe   *pipeline.Pipeline
	logger *log.Logger
	md     goldmark.Markdown
	http   *http.Server

	// GenerateTimeout and PublishTimeout bound a whole request.
	GenerateTimeout time.Duration
	PublishTimeout  time.Duration
}

// New builds the API server for addr. Routes can be used without listening.
func New(pipe *pipeline.Pipeline, addr string, logger *log.Logger) (*Server, error) {
	if pipe == nil {
		return nil, errors.New("pipeline required")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		pipe:            pipe,
		logger:          logger,
		md:              goldmark.New(),
		GenerateTimeout: defaultGenTimeout,
		PublishTimeout:  defaultPubTimeout,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(s.Routes(), &http2.Server{}),
		ReadHeaderTimeout: defaultReadTimeout,
	}
	return s, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/topics", s.handleTopics)
	mux.HandleFunc("/api/draft", s.handleDraft)
	mux.HandleFunc("/api/draft/text", s.handleText)
	mux.HandleFunc("/api/draft/image", s.handleImage)
	mux.HandleFunc("/api/draft/publish", s.handlePublish)
	return s.logMiddleware(mux)
}

// Start serves the API over HTTP/1.1 and cleartext HTTP/2 until Shutdown.
func (s *Server) Start() error {
	s.logger.Printf("Starting web server on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// --- Handlers ---

type topicsResp struct {
	Topics []discovery.Headline `json:"topics"`
}

type generateReq struct {
	Topic string `json:"topic"`
}

type textReq struct {
	Text *string `json:"text"`
}

type errorBody struct {
	Kind    failure.Kind `json:"kind,omitempty"`
	Message string       `json:"message"`
}

type draftResp struct {
	Draft       draft.Draft            `json:"draft"`
	PreviewHTML string                 `json:"preview_html,omitempty"`
	Result      *content.PublishResult `json:"result,omitempty"`
	Error       *errorBody             `json:"error,omitempty"`
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	topics, err := s.pipe.Suggest(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if topics == nil {
		topics = []discovery.Headline{}
	}
	writeJSON(w, http.StatusOK, topicsResp{Topics: topics})
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeDraft(w, s.pipe.Draft(), nil, nil)
	case http.MethodPost:
		var req generateReq
		if !decode(w, r, &req) {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.GenerateTimeout)
		defer cancel()
		d, err := s.pipe.Generate(ctx, req.Topic)
		s.writeDraft(w, d, nil, err)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req textReq
	if !decode(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, failure.New(failure.KindValidation, "set text", "text is required"))
		return
	}
	d, err := s.pipe.SetText(*req.Text)
	if err != nil {
		s.writeDraft(w, s.pipe.Draft(), nil, err)
		return
	}
	s.writeDraft(w, d, nil, nil)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	d := s.pipe.Draft()
	if !d.Image.Valid() {
		http.Error(w, "draft has no image", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", d.Image.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(d.Image.Data)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.PublishTimeout)
	defer cancel()
	d, res, err := s.pipe.Publish(ctx)
	s.writeDraft(w, d, res, err)
}

// --- Helpers ---

func (s *Server) writeDraft(w http.ResponseWriter, d draft.Draft, res *content.PublishResult, err error) {
	resp := draftResp{Draft: d, Result: res}
	if d.HasText() {
		var buf bytes.Buffer
		if cerr := s.md.Convert([]byte(d.Text), &buf); cerr == nil {
			resp.PreviewHTML = buf.String()
		} else {
			s.logger.Printf("[WARN] preview render failed: %v", cerr)
		}
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = &errorBody{Kind: failure.KindOf(err), Message: failure.Message(err)}
	}
	writeJSON(w, status, resp)
}

// statusFor maps a failure kind to the HTTP status the API reports.
func statusFor(err error) int {
	switch failure.KindOf(err) {
	case failure.KindValidation:
		return http.StatusBadRequest
	case failure.KindConcurrencyConflict:
		return http.StatusConflict
	case failure.KindRateLimited:
		return http.StatusTooManyRequests
	case failure.KindRejected:
		return http.StatusUnprocessableEntity
	case failure.KindTimeout:
		return http.StatusGatewayTimeout
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, failure.Wrap(failure.KindValidation, "decode request", err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]*errorBody{
		"error": {Kind: failure.KindOf(err), Message: failure.Message(err)},
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		s.logger.Printf("%s %s %d %s", r.Method, strings.TrimSpace(path), rec.status, time.Since(start).Round(time.Millisecond))
	})
}
