// internal/submission/client.go
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crashreporter/internal/config"
	"github.com/xkilldash9x/crashreporter/internal/crashlog"
)

// maxErrorBody caps how much of a rejection response is kept in SubmissionError.
const maxErrorBody = 4 << 10

// Submitter is the contract the reporter uses to upload a payload.
type Submitter interface {
	Submit(ctx context.Context, p Payload) (Result, error)
}

// Client posts payloads as multipart/form-data to the collection endpoint.
// Each Submit makes exactly one attempt bounded by the configured timeout.
type Client struct {
	logger      *zap.Logger
	httpClient  *http.Client
	endpoint    string
	timeout     time.Duration
	compression config.Compression
	headers     map[string]string
	userAgent   string
	newID       func() string
}

// NewClient returns a client posting to endpoint.
func NewClient(logger *zap.Logger, endpoint string, cfg config.NetworkConfig) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("submission endpoint is not configured")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.Named("submission")
	return &Client{
		logger:      logger,
		httpClient:  &http.Client{Transport: newHTTPTransport(logger)},
		endpoint:    endpoint,
		timeout:     cfg.Timeout,
		compression: cfg.Compression,
		headers:     cfg.Headers,
		userAgent:   cfg.UserAgent,
		newID:       func() string { return uuid.NewString() },
	}, nil
}

// openedFile is a crash log or attachment opened before the request starts.
type openedFile struct {
	field string
	name  string
	date  time.Time
	f     *os.File
}

// Submit uploads p. Crash logs that cannot be opened abort the submission;
// unreadable attachments are skipped and listed in Result.Skipped.
func (c *Client) Submit(ctx context.Context, p Payload) (Result, error) {
	if len(p.Reports) == 0 {
		return Result{}, ErrNoReports
	}

	files, skipped, err := c.openFiles(p)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		for _, of := range files {
			of.f.Close()
		}
	}()

	result := Result{
		SubmissionID: c.newID(),
		Reports:      append([]crashlog.Report(nil), p.Reports...),
		Skipped:      skipped,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	encoding, err := c.contentEncoding()
	if err != nil {
		return Result{}, err
	}
	// Only used to pick the boundary; the body is written by writeBody.
	boundary := multipart.NewWriter(io.Discard)

	pr, pw := io.Pipe()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", boundary.FormDataContentType())
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	writeDone := make(chan error, 1)
	go func() {
		werr := c.writeBody(pw, boundary.Boundary(), result.SubmissionID, p, files)
		pw.CloseWithError(werr)
		writeDone <- werr
	}()

	c.logger.Info("Submitting crash reports.",
		zap.String("submission_id", result.SubmissionID),
		zap.Int("reports", len(p.Reports)),
		zap.Int("attachments", len(files)-len(p.Reports)),
		zap.String("endpoint", c.endpoint))

	resp, err := c.httpClient.Do(req)
	// Unblock the writer if the transport stopped reading early.
	pr.CloseWithError(errRequestFinished)
	werr := <-writeDone

	if err != nil {
		if werr != nil && !errors.Is(werr, errRequestFinished) && !errors.Is(werr, io.ErrClosedPipe) {
			return Result{}, fmt.Errorf("failed to encode submission: %w", werr)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	result.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &SubmissionError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var reply struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(body, &reply) == nil {
		result.RemoteID = reply.ID
	}

	c.logger.Info("Crash reports accepted.",
		zap.String("submission_id", result.SubmissionID),
		zap.String("remote_id", result.RemoteID),
		zap.Int("status", resp.StatusCode))
	return result, nil
}

var errRequestFinished = errors.New("submission request finished")

// Close releases idle connections held by the transport.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// contentEncoding validates the compression setting and returns its header value.
func (c *Client) contentEncoding() (string, error) {
	_, enc, err := newBodyEncoder(io.Discard, c.compression)
	return enc, err
}

func (c *Client) openFiles(p Payload) ([]openedFile, []string, error) {
	var files []openedFile
	fail := func(err error) ([]openedFile, []string, error) {
		for _, of := range files {
			of.f.Close()
		}
		return nil, nil, err
	}

	for _, r := range p.Reports {
		f, err := os.Open(r.Path)
		if err != nil {
			return fail(fmt.Errorf("%w: %s: %v", ErrReportUnreadable, r.Path, err))
		}
		files = append(files, openedFile{field: FieldCrashLog, name: filepath.Base(r.Path), date: r.Date, f: f})
	}

	var skipped []string
	for _, path := range p.Attachments {
		f, err := os.Open(path)
		if err != nil {
			c.logger.Warn("Skipping unreadable attachment.", zap.String("path", path), zap.Error(err))
			skipped = append(skipped, path)
			continue
		}
		files = append(files, openedFile{field: FieldAttachment, name: filepath.Base(path), f: f})
	}
	return files, skipped, nil
}

// writeBody streams the multipart document through the configured compressor.
func (c *Client) writeBody(pw io.Writer, boundary, id string, p Payload, files []openedFile) error {
	enc, _, err := newBodyEncoder(pw, c.compression)
	if err != nil {
		return err
	}
	w := multipart.NewWriter(enc)
	if err := w.SetBoundary(boundary); err != nil {
		return err
	}

	if err := w.WriteField(FieldSubmissionID, id); err != nil {
		return err
	}
	if err := w.WriteField(FieldComments, p.Comments); err != nil {
		return err
	}
	if err := w.WriteField(FieldEmail, p.Email); err != nil {
		return err
	}

	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	doc, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	if err := w.WriteField(FieldAttributes, string(doc)); err != nil {
		return err
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if IsReservedField(k) {
			continue
		}
		if err := w.WriteField(k, attrs[k]); err != nil {
			return err
		}
	}

	for _, of := range files {
		if of.field == FieldCrashLog {
			if err := w.WriteField(FieldCrashLogDate, of.date.UTC().Format(time.RFC3339Nano)); err != nil {
				return err
			}
		}
		part, err := w.CreateFormFile(of.field, of.name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, of.f); err != nil {
			return fmt.Errorf("failed to stream %s: %w", of.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	return enc.Close()
}
