package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"qa-service/internal/config"
	"qa-service/internal/factory"
	"qa-service/internal/scheduler"
	"qa-service/internal/util"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	f, err := factory.NewFactory(ctx, config.LoadConfig(), clockwork.NewRealClock())
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer util.Sync()

	cfg := f.Config()
	router := f.Router()

	// Background jobs stop with the signal context.
	jobs := scheduler.New(f.Clock(), f.Logger(), f.ScheduledTasks()...)
	jobs.Start(ctx)

	serverAddr := cfg.GetServerAddress()
	if cfg.Server.EnableTLS {
		serverAddr = fmt.Sprintf(":%d", cfg.Server.TLSPort)
	}

	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	servers := []*http.Server{server}
	if cfg.Server.EnableTLS {
		server.TLSConfig = f.TLSManager().GetTLSConfig()

		if cfg.IsProduction() && cfg.Server.AutoCert {
			servers = startProductionServerWithAutoCert(f, server, cfg)
		} else {
			util.Info("Starting HTTPS server",
				util.String("environment", cfg.Environment),
				util.Int("port", cfg.Server.TLSPort),
				util.Bool("auto_cert", cfg.Server.AutoCert),
			)
			go serve(server, true)
		}
	} else {
		util.Warn("Starting HTTP server - TLS is disabled",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.Port),
		)
		go serve(server, false)
	}

	util.Info("Server started successfully",
		util.String("address", server.Addr),
		util.String("llm_provider", cfg.LLM.Provider),
		util.String("storage", cfg.Storage.Backend),
	)

	<-ctx.Done()
	util.Info("Received shutdown signal")
	shutdown(f, jobs, servers...)
}

func serve(server *http.Server, useTLS bool) {
	var err error
	if useTLS {
		// Certificates come from TLSConfig.GetCertificate.
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		util.Fatal("Server failed to start", util.ErrorField(err))
	}
}

// startProductionServerWithAutoCert serves ACME challenges on :80 and the API on :443.
func startProductionServerWithAutoCert(f *factory.Factory, server *http.Server, cfg *config.Config) []*http.Server {
	autoCertManager := f.TLSManager().GetAutocertManager()
	if autoCertManager == nil {
		util.Fatal("AutoCert manager is not available in production")
	}

	httpServer := &http.Server{
		Addr:              ":80",
		Handler:           autoCertManager.HTTPHandler(nil),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	server.Addr = ":443"

	go func() {
		util.Info("Starting HTTP redirect server on port 80")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Error("HTTP redirect server failed", util.ErrorField(err))
		}
	}()
	util.Info("Starting HTTPS server with AutoCert on port 443", util.String("domain", cfg.Server.Domain))
	go serve(server, true)

	return []*http.Server{server, httpServer}
}

func shutdown(f *factory.Factory, jobs *scheduler.Scheduler, servers ...*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			util.Error("Failed to shutdown server gracefully", util.ErrorField(err), util.String("address", srv.Addr))
		}
	}
	jobs.Wait()

	if err := f.Close(); err != nil {
		util.Error("Failed to close dependencies", util.ErrorField(err))
	}
	util.Info("Server shutdown completed")
}
