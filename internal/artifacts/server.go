package artifacts

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server exposes a saved artifact directory over HTTP so a run can be
// inspected from a browser while the tool server keeps going.
type Server struct {
	dir        string
	logger     *zap.Logger
	httpServer *http.Server
}

// artifactEntry is one listing row.
type artifactEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// NewServer builds a server for one artifact directory.
func NewServer(addr, dir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{dir: dir, logger: logger.Named("artifacts-http")}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/artifacts", s.handleList)
	r.Handle("/artifacts/*", http.StripPrefix("/artifacts/", http.FileServer(http.Dir(dir))))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Artifact server listening.", zap.String("addr", s.httpServer.Addr), zap.String("dir", s.dir))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleList returns the artifact files newest first.
func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("Failed to read artifact directory.", zap.Error(err))
		http.Error(w, "artifact directory unavailable", http.StatusInternalServerError)
		return
	}

	list := make([]artifactEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		list = append(list, artifactEntry{
			Name:     filepath.Base(e.Name()),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Modified.After(list[j].Modified) })

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		s.logger.Warn("Failed to encode artifact listing.", zap.Error(err))
	}
}
