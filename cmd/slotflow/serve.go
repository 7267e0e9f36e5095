package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/rsharan/slotflow/pkg/slotflow"
	"github.com/rsharan/slotflow/pkg/slotflow/booking"
	"github.com/rsharan/slotflow/pkg/slotflow/store"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the intake engine over HTTP",
		Long: `serve starts an HTTP server for messaging-channel webhooks.
Each channel identity maps to a conversation key; POST a message to
/conversations/{key}/messages and relay the response text back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			svc, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := &http.Server{
				Addr:              addr,
				Handler:           newRouter(svc),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address")
	return cmd
}

type messageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Response      string  `json:"response"`
	ShouldConfirm bool    `json:"should_confirm"`
	Completeness  float64 `json:"completeness"`
	Cursor        string  `json:"cursor"`
	Done          bool    `json:"done"`
}

func newRouter(svc *booking.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/conversations/{key}", func(r chi.Router) {
		r.Post("/messages", handleMessage(svc))
		r.Get("/", handleSnapshot(svc))
		r.Delete("/", handleReset(svc))
	})

	return r
}

func handleMessage(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty \"text\"")
			return
		}

		key := chi.URLParam(r, "key")
		res, err := svc.Message(r.Context(), key, req.Text)
		switch {
		case errors.Is(err, slotflow.ErrConversationEnded):
			writeError(w, http.StatusConflict, "conversation already finished")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "step failed")
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{
			Response:      res.Response,
			ShouldConfirm: res.ShouldConfirm,
			Completeness:  res.Completeness,
			Cursor:        res.Cursor,
			Done:          res.Done,
		})
	}
}

func handleSnapshot(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot(r.Context(), chi.URLParam(r, "key"))
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "no such conversation")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "snapshot failed")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleReset(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Reset(r.Context(), chi.URLParam(r, "key")); err != nil {
			writeError(w, http.StatusInternalServerError, "reset failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
