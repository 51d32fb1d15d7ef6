package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/testforge/uidetect/internal/api/middleware"
	"github.com/testforge/uidetect/internal/domain"
	"github.com/testforge/uidetect/internal/page"
	"github.com/testforge/uidetect/internal/services/detection"
	"github.com/testforge/uidetect/pkg/httputil"
)

// maxFields caps fields plus descriptions in one request.
const maxFields = 50

// ElementDetector is the part of detection.Detector the API calls.
type ElementDetector interface {
	DetectLoginElements(ctx context.Context, p page.Page, fields ...string) (detection.Results, error)
	DetectSearchElements(ctx context.Context, p page.Page, fields ...string) (detection.Results, error)
	DetectLinkElements(ctx context.Context, p page.Page, links []string) (detection.Results, error)
	DetectGenericElements(ctx context.Context, p page.Page, descriptions []string) ([]domain.DetectionResult, error)
	Detect(ctx context.Context, p page.Page, fields []string, dctx detection.Context) (detection.Results, error)
}

// PageOpener loads a live page for a URL. browser.Opener implements it.
type PageOpener interface {
	Open(ctx context.Context, rawURL string) (page.Page, func(), error)
}

// DetectHandler serves POST /api/v1/detect
type DetectHandler struct {
	detector ElementDetector
	opener   PageOpener
	logger   *zap.Logger
}

// NewDetectHandler creates a detect handler. A nil opener disables URL requests.
func NewDetectHandler(detector ElementDetector, opener PageOpener, logger *zap.Logger) *DetectHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetectHandler{
		detector: detector,
		opener:   opener,
		logger:   logger,
	}
}

// DetectRequest is the body of POST /api/v1/detect. Exactly one of HTML and URL is set.
// Screenshot optionally accompanies HTML so the AI strategies have an image to read.
type DetectRequest struct {
	HTML         string   `json:"html,omitempty"`
	URL          string   `json:"url,omitempty"`
	Screenshot   []byte   `json:"screenshot,omitempty"`
	Context      string   `json:"context,omitempty"`
	Fields       []string `json:"fields,omitempty"`
	Descriptions []string `json:"descriptions,omitempty"`
}

// DetectResponse carries keyed results for field requests and ordered elements for
// description requests.
type DetectResponse struct {
	RequestID  string                            `json:"request_id"`
	Context    string                            `json:"context"`
	Results    map[string]domain.DetectionResult `json:"results,omitempty"`
	Elements   []domain.DetectionResult          `json:"elements,omitempty"`
	Missing    []string                          `json:"missing,omitempty"`
	DurationMS int64                             `json:"duration_ms"`
}

// Validate checks the request shape before any page is loaded.
func (req *DetectRequest) Validate() error {
	hasHTML := strings.TrimSpace(req.HTML) != ""
	hasURL := strings.TrimSpace(req.URL) != ""
	switch {
	case hasHTML && hasURL:
		return domain.ErrValidationField("html", "html and url are mutually exclusive")
	case !hasHTML && !hasURL:
		return domain.ErrValidationField("html", "one of html or url is required")
	}

	if len(req.Fields) > 0 && len(req.Descriptions) > 0 {
		return domain.ErrValidationField("fields", "fields and descriptions are mutually exclusive")
	}
	if len(req.Fields)+len(req.Descriptions) > maxFields {
		return domain.ErrValidationField("fields", "too many fields")
	}

	ctxTag := strings.ToLower(strings.TrimSpace(req.Context))
	switch {
	case len(req.Descriptions) > 0:
		if ctxTag != "" && ctxTag != string(detection.ContextGeneric) {
			return domain.ErrValidationField("context", "descriptions are only valid in the generic context")
		}
	case ctxTag == string(detection.ContextLogin), ctxTag == string(detection.ContextSearch), ctxTag == string(detection.ContextLinks):
		// Defaults apply when no fields are named.
	case len(req.Fields) == 0:
		return domain.ErrValidationField("fields", "fields or descriptions are required")
	}
	return nil
}

// Detect handles POST /api/v1/detect
func (h *DetectHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	req.Fields = cleanNames(req.Fields)
	req.Descriptions = cleanNames(req.Descriptions)
	if err := req.Validate(); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	p, release, err := h.openPage(r.Context(), &req)
	if err != nil {
		h.logger.Warn("Failed to open page", zap.String("url", req.URL), zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}
	defer release()

	start := time.Now()
	resp, err := h.run(r.Context(), p, &req)
	resp.RequestID = middleware.RequestID(r)
	resp.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			httputil.ErrorFromDomain(w, domain.ErrAborted(err, len(resp.Results)+len(resp.Elements)))
			return
		}
		h.logger.Error("Detection failed", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}

func (h *DetectHandler) openPage(ctx context.Context, req *DetectRequest) (page.Page, func(), error) {
	if strings.TrimSpace(req.HTML) != "" {
		p, err := page.NewStaticPage(bytes.NewReader([]byte(req.HTML)))
		if err != nil {
			return nil, nil, domain.ErrValidationField("html", err.Error())
		}
		if len(req.Screenshot) > 0 {
			p = p.WithScreenshot(req.Screenshot)
		}
		return p, func() {}, nil
	}

	if h.opener == nil {
		return nil, nil, domain.ErrServiceUnavailable("browser")
	}
	return h.opener.Open(ctx, strings.TrimSpace(req.URL))
}

func (h *DetectHandler) run(ctx context.Context, p page.Page, req *DetectRequest) (DetectResponse, error) {
	tag := strings.ToLower(strings.TrimSpace(req.Context))

	if len(req.Descriptions) > 0 {
		elements, err := h.detector.DetectGenericElements(ctx, p, req.Descriptions)
		return DetectResponse{Context: string(detection.ContextGeneric), Elements: elements}, err
	}

	var (
		results detection.Results
		err     error
	)
	dctx := detection.ParseContext(tag)
	fields := req.Fields
	switch dctx {
	case detection.ContextLogin:
		if len(fields) == 0 {
			fields = detection.DefaultLoginFields
		}
		results, err = h.detector.DetectLoginElements(ctx, p, fields...)
	case detection.ContextSearch:
		if len(fields) == 0 {
			fields = detection.DefaultSearchFields
		}
		results, err = h.detector.DetectSearchElements(ctx, p, fields...)
	case detection.ContextLinks:
		if len(fields) == 0 {
			fields = detection.DefaultLinkFields
		}
		results, err = h.detector.DetectLinkElements(ctx, p, fields)
	default:
		results, err = h.detector.Detect(ctx, p, fields, dctx)
	}

	return DetectResponse{
		Context: string(dctx),
		Results: results,
		Missing: results.Missing(fields),
	}, err
}

// cleanNames trims entries and drops blanks and duplicates.
func cleanNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
