// Command apltestgen runs the HTTP surface exposing the preview/generate/
// batch endpoints. The container-assembly work all lives in pkg/
// (pkg/colorspace, pkg/png16, pkg/gainmap, pkg/mpf, ...); this binary is
// thin glue around it.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/c0lormem/apltestgen/internal/batch"
	"github.com/c0lormem/apltestgen/internal/config"
	"github.com/c0lormem/apltestgen/internal/handlers"
	"github.com/c0lormem/apltestgen/internal/logging"
)

func main() {
	defer logging.Sync()

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Lightweight custom recovery: only captures on actual panic, avoiding
	// gin.Recovery()'s per-request defer/stack-trace setup overhead.
	router.Use(func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logging.L().Errorw("panic recovered", "error", r)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	})

	if gin.Mode() == gin.DebugMode {
		router.Use(gin.Logger())
	}

	// Concurrency control: bound concurrent CPU-bound image-assembly work to
	// the CPU count to avoid goroutine thrashing.
	maxConcurrent := runtime.NumCPU()
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	semaphore := make(chan struct{}, maxConcurrent)
	fmt.Printf("Server starting with %d max concurrent workers (CPUs: %d)\n", maxConcurrent, runtime.NumCPU())

	router.Use(func(c *gin.Context) {
		semaphore <- struct{}{}
		defer func() { <-semaphore }()
		c.Next()
	})

	cfg := config.Default
	registry := batch.NewRegistry(cfg, nil)
	handlers.RegisterRoutes(router, registry)

	addr := fmt.Sprintf(":%d", cfg.PortMin)
	if p := os.Getenv("APLTESTGEN_PORT"); p != "" {
		addr = ":" + p
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
