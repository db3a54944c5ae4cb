// internal/collector/collector.go
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crashreporter/internal/config"
	"github.com/xkilldash9x/crashreporter/internal/submission"
)

const (
	metadataFile   = "metadata.json"
	crashLogsDir   = "crash_logs"
	attachmentsDir = "attachments"
	maxFieldBytes  = 1 << 20
)

// StoredFile is one uploaded file as written to the spool.
type StoredFile struct {
	Name string    `json:"name"`
	Path string    `json:"path"`
	Size int64     `json:"size"`
	Date time.Time `json:"date,omitempty"`
}

// Entry is the metadata recorded for each accepted submission.
type Entry struct {
	ID           string            `json:"id"`
	SubmissionID string            `json:"submission_id"`
	ReceivedAt   time.Time         `json:"received_at"`
	RemoteAddr   string            `json:"remote_addr"`
	Comments     string            `json:"comments"`
	Email        string            `json:"email"`
	Attributes   map[string]string `json:"attributes"`
	CrashLogs    []StoredFile      `json:"crash_logs"`
	Attachments  []StoredFile      `json:"attachments"`
}

// BaseReply is the JSON body of every response.
type BaseReply struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// Server receives crash submissions and spools them to disk.
type Server struct {
	logger  *zap.Logger
	spool   string
	maxBody int64
	router  *mux.Router
	now     func() time.Time
}

// NewServer creates the spool directory and wires the routes.
func NewServer(logger *zap.Logger, cfg config.CollectorConfig) (*Server, error) {
	if cfg.SpoolDir == "" {
		return nil, fmt.Errorf("collector spool_dir is required")
	}
	if err := os.MkdirAll(cfg.SpoolDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 64 << 20
	}
	s := &Server{
		logger:  logger.Named("collector"),
		spool:   cfg.SpoolDir,
		maxBody: maxBody,
		router:  mux.NewRouter(),
		now:     time.Now,
	}
	s.applyRoutes()
	return s, nil
}

func (s *Server) applyRoutes() {
	s.router.HandleFunc("/submit", s.handleSubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the routes wrapped with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	accessLog := zap.NewStdLog(s.logger.Named("access")).Writer()
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CombinedLoggingHandler(accessLog, s.router),
	)
}

// Serve accepts connections on l until ctx is canceled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()
	s.logger.Info("Collector listening.", zap.String("address", l.Addr().String()), zap.String("spool", s.spool))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("collector shutdown failed: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ListenAndServe listens on addr and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("collector failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeReply(w, http.StatusOK, BaseReply{Status: "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		s.badRequest(w, "expected multipart/form-data")
		return
	}

	body, err := submission.NewBodyDecoder(http.MaxBytesReader(w, r.Body, s.maxBody), r.Header.Get("Content-Encoding"))
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	defer body.Close()

	incoming, err := os.MkdirTemp(s.spool, ".incoming-")
	if err != nil {
		s.logger.Error("Could not create incoming directory.", zap.Error(err))
		s.serverError(w, "could not store submission")
		return
	}
	defer os.RemoveAll(incoming) // no-op once renamed into place

	entry := Entry{
		ReceivedAt: s.now().UTC(),
		RemoteAddr: r.RemoteAddr,
		Attributes: map[string]string{},
	}
	if err := s.readParts(multipart.NewReader(body, params["boundary"]), incoming, &entry); err != nil {
		s.logger.Warn("Rejected malformed submission.", zap.Error(err))
		s.badRequest(w, err.Error())
		return
	}
	if len(entry.CrashLogs) == 0 {
		s.badRequest(w, "missing crash_log")
		return
	}

	entry.ID = s.pickID(entry.SubmissionID)
	final := filepath.Join(s.spool, entry.ID)
	relocate(&entry, incoming, final)

	data, err := json.MarshalIndent(entry, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(incoming, metadataFile), data, 0o644)
	}
	if err == nil {
		err = os.Rename(incoming, final)
	}
	if err != nil {
		s.logger.Error("Could not persist submission.", zap.Error(err))
		s.serverError(w, "could not store submission")
		return
	}

	s.logger.Info("Submission stored.",
		zap.String("id", entry.ID),
		zap.Int("crash_logs", len(entry.CrashLogs)),
		zap.Int("attachments", len(entry.Attachments)))
	writeReply(w, http.StatusOK, BaseReply{Status: "success", ID: entry.ID})
}

func (s *Server) readParts(mr *multipart.Reader, dir string, entry *Entry) error {
	var pendingDate time.Time
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed multipart body: %w", err)
		}
		err = readPart(part, dir, entry, &pendingDate)
		part.Close()
		if err != nil {
			return err
		}
	}
}

// readPart stores one part into entry. pendingDate carries a crash_log_date
// value over to the crash_log part that follows it.
func readPart(part *multipart.Part, dir string, entry *Entry, pendingDate *time.Time) error {
	name := part.FormName()
	switch name {
	case submission.FieldCrashLog, submission.FieldAttachment:
		if part.FileName() == "" {
			return fmt.Errorf("%s part has no file name", name)
		}
	}

	switch name {
	case submission.FieldCrashLog:
		f, err := storeFile(part, filepath.Join(dir, crashLogsDir), len(entry.CrashLogs))
		if err != nil {
			return err
		}
		f.Date = *pendingDate
		*pendingDate = time.Time{}
		entry.CrashLogs = append(entry.CrashLogs, f)
		return nil
	case submission.FieldAttachment:
		f, err := storeFile(part, filepath.Join(dir, attachmentsDir), len(entry.Attachments))
		if err != nil {
			return err
		}
		entry.Attachments = append(entry.Attachments, f)
		return nil
	}

	value, err := readField(part)
	if err != nil {
		return err
	}
	switch name {
	case submission.FieldSubmissionID:
		entry.SubmissionID = value
	case submission.FieldComments:
		entry.Comments = value
	case submission.FieldEmail:
		entry.Email = value
	case submission.FieldCrashLogDate:
		*pendingDate, _ = time.Parse(time.RFC3339Nano, value)
	case submission.FieldAttributes:
		doc := map[string]string{}
		if err := json.Unmarshal([]byte(value), &doc); err != nil {
			return fmt.Errorf("attributes is not a JSON object: %w", err)
		}
		for k, v := range doc {
			entry.Attributes[k] = v
		}
	default:
		// Per-key attribute fields mirror the JSON document; keep any
		// key the document did not carry.
		if _, ok := entry.Attributes[name]; !ok && name != "" {
			entry.Attributes[name] = value
		}
	}
	return nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read field %s: %w", part.FormName(), err)
	}
	if len(data) > maxFieldBytes {
		return "", fmt.Errorf("field %s exceeds %d bytes", part.FormName(), maxFieldBytes)
	}
	return string(data), nil
}

// storeFile writes an uploaded part into dir. Names are reduced to their base
// and prefixed with the part index so duplicates do not collide.
func storeFile(part *multipart.Part, dir string, index int) (StoredFile, error) {
	base := filepath.Base(filepath.Clean("/" + part.FileName()))
	if base == "/" || base == "." || base == ".." {
		return StoredFile{}, fmt.Errorf("invalid file name %q", part.FileName())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredFile{}, err
	}
	path := filepath.Join(dir, fmt.Sprintf("%02d-%s", index, base))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredFile{}, err
	}
	n, err := io.Copy(f, part)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to store %s: %w", base, err)
	}
	return StoredFile{Name: base, Path: path, Size: n}, nil
}

// relocate rewrites stored paths from the incoming directory to the final one.
func relocate(entry *Entry, from, to string) {
	for i := range entry.CrashLogs {
		entry.CrashLogs[i].Path = strings.Replace(entry.CrashLogs[i].Path, from, to, 1)
	}
	for i := range entry.Attachments {
		entry.Attachments[i].Path = strings.Replace(entry.Attachments[i].Path, from, to, 1)
	}
}

// pickID reuses the client's submission id when it is a fresh UUID.
func (s *Server) pickID(submissionID string) string {
	if id, err := uuid.Parse(submissionID); err == nil {
		if _, err := os.Stat(filepath.Join(s.spool, id.String())); errors.Is(err, os.ErrNotExist) {
			return id.String()
		}
	}
	return uuid.NewString()
}

// Entries reads back every stored submission, oldest first.
func (s *Server) Entries() ([]Entry, error) {
	return ReadSpool(s.spool)
}

// ReadSpool loads the metadata of every submission in dir, oldest first.
func ReadSpool(dir string) ([]Entry, error) {
	dirs, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read spool: %w", err)
	}
	var entries []Entry
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, d.Name(), metadataFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s metadata: %w", d.Name(), err)
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("corrupt %s metadata: %w", d.Name(), err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ReceivedAt.Before(entries[j].ReceivedAt) })
	return entries, nil
}

func (s *Server) badRequest(w http.ResponseWriter, descr string) {
	writeReply(w, http.StatusBadRequest, BaseReply{Status: fmt.Sprintf("error: %s", descr)})
}

func (s *Server) serverError(w http.ResponseWriter, descr string) {
	writeReply(w, http.StatusInternalServerError, BaseReply{Status: fmt.Sprintf("error: %s", descr)})
}

func writeReply(w http.ResponseWriter, status int, reply BaseReply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(reply)
}
