package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/monitoring"
	"github.com/sells-group/dispatch-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingest server",
	Long:  "Accepts ingest requests over HTTP and runs the background health checker that alerts on failed ingests and issue spikes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		// Background alerting.
		checker := monitoring.NewChecker(
			monitoring.NewCollector(env.Store),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		go checker.Run(ctx)

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /ingest", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Path string `json:"path"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if req.Path == "" {
				http.Error(w, `{"error":"path is required"}`, http.StatusBadRequest)
				return
			}

			// Run the ingest asynchronously; progress lands in the store.
			go func() {
				result, err := env.Pipeline.Run(ctx, req.Path)
				if err != nil {
					zap.L().Error("server ingest failed",
						zap.String("source", req.Path),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("server ingest complete",
					zap.String("source", req.Path),
					zap.String("ingest", result.Ingest.ID),
					zap.Float64("invoice_total", result.Invoice.TotalCost),
				)
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "accepted",
				"source": req.Path,
			})
		})

		mux.HandleFunc("POST /invoice", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Path string `json:"path"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
				http.Error(w, `{"error":"path is required"}`, http.StatusBadRequest)
				return
			}

			// Synchronous: the caller wants the priced invoice back.
			result, err := env.Pipeline.Run(r.Context(), req.Path)
			if err != nil {
				zap.L().Error("server invoice failed",
					zap.String("source", req.Path),
					zap.Error(err),
				)
				http.Error(w, `{"error":"ingest failed"}`, http.StatusUnprocessableEntity)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(result.Invoice)
		})

		mux.HandleFunc("GET /ingests", func(w http.ResponseWriter, r *http.Request) {
			filter := store.IngestFilter{
				Status: model.IngestStatus(r.URL.Query().Get("status")),
				Limit:  50,
			}
			runs, err := env.Store.ListIngests(r.Context(), filter)
			if err != nil {
				http.Error(w, `{"error":"list ingests failed"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(runs)
		})

		mux.HandleFunc("GET /ingests/{id}", func(w http.ResponseWriter, r *http.Request) {
			run, err := env.Store.GetIngest(r.Context(), r.PathValue("id"))
			if err != nil {
				http.Error(w, `{"error":"ingest not found"}`, http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(run)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
