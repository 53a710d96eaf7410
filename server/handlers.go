package server

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seqsense/splatview/relay"
	"github.com/seqsense/splatview/share"
	"github.com/seqsense/splatview/usage"
)

// Form fields accepted for the uploaded photo, in order of preference.
var uploadFields = []string{"file", "image"}

type createSplatResponse struct {
	PlyURL     string `json:"ply_url"`
	ShareToken string `json:"share_token,omitempty"`
	SharePath  string `json:"share_path,omitempty"`
	Remaining  int64  `json:"remaining"`
}

type usageResponse struct {
	Used      int64      `json:"used"`
	Limit     int64      `json:"limit"`
	Remaining int64      `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

type acquireResponse struct {
	Success   bool  `json:"success"`
	Remaining int64 `json:"remaining"`
}

type shareResponse struct {
	Token string `json:"token,omitempty"`
	Path  string `json:"path,omitempty"`
	URL   string `json:"url,omitempty"`
}

func (s *Server) handleCreateSplat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := RequestIDFromContext(ctx)
	logger := s.logger.With(zap.String("request_id", reqID))

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.Server.MaxUploadBytes)
	file, header, err := uploadedFile(r, s.opts.Server.MaxUploadBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "Image too large",
				"Please upload an image smaller than "+humanBytes(s.opts.Server.MaxUploadBytes)+".")
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "No image uploaded", "")
		default:
			writeError(w, http.StatusBadRequest, "Invalid upload", "The request is not a valid multipart form.")
		}
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid upload", "")
		return
	}
	head = head[:n]
	if n == 0 {
		writeError(w, http.StatusBadRequest, "No image uploaded", "The uploaded file is empty.")
		return
	}
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported file type",
			"Please upload a JPEG, PNG or WebP photo.")
		return
	}

	// The quota is checked before the reconstruction service is contacted.
	q, err := s.opts.Counter.Acquire(ctx)
	if err != nil {
		s.writeAcquireError(w, logger, err)
		return
	}
	s.metrics.quotaRemaining.Set(float64(q.Remaining))

	start := time.Now()
	res, err := s.opts.Relay.Reconstruct(ctx, relay.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Body:        io.MultiReader(bytes.NewReader(head), file),
		RequestID:   reqID,
	})
	if err != nil {
		status, body, outcome := relayFailure(err)
		s.metrics.observeRelay(outcome, time.Since(start))
		logger.Warn("reconstruction failed", zap.Error(err), zap.Int("status", status))
		writeJSON(w, status, body)
		return
	}
	s.metrics.observeRelay(outcomeOK, time.Since(start))

	resp := createSplatResponse{PlyURL: res.URL, Remaining: q.Remaining}
	if token, err := s.codec.Encode(res.URL); err == nil {
		resp.ShareToken = token
		resp.SharePath = share.ViewPath(token)
	} else {
		logger.Warn("cloud url is not shareable", zap.String("url", res.URL), zap.Error(err))
	}
	logger.Info("splat created",
		zap.String("ply_url", res.URL),
		zap.Duration("elapsed", res.Duration),
		zap.Int64("remaining", q.Remaining),
	)
	writeJSON(w, http.StatusOK, resp)
}

func uploadedFile(r *http.Request, maxMemory int64) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, nil, err
	}
	for _, field := range uploadFields {
		f, h, err := r.FormFile(field)
		if err == nil {
			return f, h, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, nil, err
		}
	}
	return nil, nil, http.ErrMissingFile
}

func (s *Server) writeAcquireError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if errors.Is(err, usage.ErrLimitReached) {
		s.metrics.usageRejected.Inc()
		s.metrics.quotaRemaining.Set(0)
		logger.Info("usage limit reached")
		writeError(w, http.StatusTooManyRequests, "Usage limit reached", msgLimitReached)
		return
	}
	logger.Error("failed to count usage", zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, "Service unavailable", "Usage could not be checked. Please try again later.")
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	q, err := s.opts.Counter.Peek(r.Context())
	if err != nil {
		s.logger.Error("failed to read usage", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Service unavailable", "")
		return
	}
	resp := usageResponse{Used: q.Used, Limit: q.Limit, Remaining: q.Remaining}
	if !q.ResetAt.IsZero() {
		t := q.ResetAt.UTC()
		resp.ResetAt = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUsageAcquire(w http.ResponseWriter, r *http.Request) {
	q, err := s.opts.Counter.Acquire(r.Context())
	if err != nil {
		s.writeAcquireError(w, s.logger.With(zap.String("request_id", RequestIDFromContext(r.Context()))), err)
		return
	}
	s.metrics.quotaRemaining.Set(float64(q.Remaining))
	writeJSON(w, http.StatusOK, acquireResponse{Success: true, Remaining: q.Remaining})
}

func (s *Server) handleShareEncode(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing url", "")
		return
	}
	token, err := s.codec.Encode(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid URL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{Token: token, Path: share.ViewPath(token)})
}

func (s *Server) handleShareDecode(w http.ResponseWriter, r *http.Request) {
	u, err := s.codec.Decode(r.PathValue("token"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidLink, "")
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{URL: u})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func humanBytes(n int64) string {
	const unit = 1 << 20
	if n >= unit && n%unit == 0 {
		return strconv.FormatInt(n/unit, 10) + " MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}
