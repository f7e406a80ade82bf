
package splitlib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// #############################################################################
// # Core Split Library
// #############################################################################

// maxErrorBody bounds how much of a failed upstream response is read for logging.
const maxErrorBody = 64 * 1024

type Splitter struct {
	UpstreamURL     string
	UserAgent       string
	PropagateStatus bool
	Client          *http.Client
}

// Response is a host-independent HTTP response produced by Handle.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type errorBody struct {
	Error string `json:"error"`
}

// NewSplitter creates a Splitter from a validated configuration.
func NewSplitter(cfg Config) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Splitter{
		UpstreamURL:     cfg.UpstreamURL,
		UserAgent:       cfg.UserAgent,
		PropagateStatus: cfg.PropagateStatus,
		Client: &http.Client{
			Timeout: time.Second * time.Duration(cfg.Timeout),
		},
	}, nil
}

// Handle is the core, environment-agnostic function for splitting a PDF.
// It turns an inbound multipart body into the response the caller should
// see. Every failure, including a panic, becomes a JSON error body.
func (s *Splitter) Handle(ctx context.Context, body []byte, contentType string) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			logf(ctx, "ERROR: recovered from panic while splitting: %v", r)
			err, _ := r.(error)
			resp = s.errorResponse(&Error{Kind: KindUnknown, Status: http.StatusInternalServerError, Message: Message(err)})
		}
	}()

	parts, err := ReadParts(body, contentType)
	if err != nil {
		logf(ctx, "WARN: rejecting split request: %v", errorCause(err))
		return s.errorResponse(err)
	}

	pdf, err := s.Split(ctx, parts)
	if err != nil {
		return s.errorResponse(err)
	}

	header := make(http.Header)
	header.Set("Content-Type", PDFContentType)
	return &Response{Status: http.StatusOK, Header: header, Body: pdf}
}

// Split forwards the named parts to the upstream service in one POST and
// returns the response body when the upstream answers with a 2xx status.
func (s *Splitter) Split(ctx context.Context, parts []Part) ([]byte, error) {
	payload, contentType, err := BuildPayload(parts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.UpstreamURL, payload)
	if err != nil {
		return nil, fmt.Errorf("error creating upstream request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		logf(ctx, "ERROR: upstream request to %s failed: %v", s.UpstreamURL, err)
		return nil, transportFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := summarizeErrorBody(resp)
		logf(ctx, "WARN: upstream returned %d: %s", resp.StatusCode, detail)
		return nil, upstreamFailed(resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportFailed(fmt.Errorf("error reading upstream body: %w", err))
	}
	return bodyBytes, nil
}

func (s *Splitter) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// errorResponse shapes err into {"error": message}. The status stays 200
// unless PropagateStatus is set.
// ErrorResponse renders err as the JSON error body, using the same status
// policy as Handle.
func (s *Splitter) ErrorResponse(err error) *Response {
	return s.errorResponse(err)
}

func (s *Splitter) errorResponse(err error) *Response {
	status := http.StatusOK
	if s.PropagateStatus {
		status = StatusOf(err)
	}

	// errorBody holds only a string, so Marshal cannot fail.
	body, _ := json.Marshal(errorBody{Error: Message(err)})

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &Response{Status: status, Header: header, Body: body}
}

// #############################################################################
// # Helper Functions
// #############################################################################

// summarizeErrorBody returns a short description of a failed upstream
// response for the log. HTML error pages are reduced to their title or text.
func summarizeErrorBody(resp *http.Response) string {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Sprintf("error reading body: %v", err)
	}

	text := strings.TrimSpace(string(bodyBytes))
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err != nil {
			log.Printf("WARN: Could not parse upstream error page: %v", err)
		} else if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
			text = title
		} else {
			text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
		}
	}

	if text == "" {
		return "(empty body)"
	}
	const maxLen = 200
	if len(text) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return text
}

// errorCause returns the wrapped cause of a tagged error for logging.
func errorCause(err error) error {
	if se, ok := err.(*Error); ok && se.Err != nil {
		return se.Err
	}
	return err
}

type requestIDKey struct{}

// WithRequestID returns a context whose log lines are tagged with id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func logf(ctx context.Context, format string, v ...any) {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		format = "[" + id + "] " + format
	}
	log.Printf(format, v...)
}
