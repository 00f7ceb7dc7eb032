// Package daemon serves liveness sessions over a unix socket
package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/MrCodeEU/LiveCheck/internal/config"
	"github.com/MrCodeEU/LiveCheck/internal/history"
	"github.com/MrCodeEU/LiveCheck/internal/liveness"
	"github.com/MrCodeEU/LiveCheck/pkg/models"
	"github.com/sirupsen/logrus"
)

const fallbackSocket = "/tmp/livecheck.sock"

// Run starts the daemon and blocks until ctx is cancelled
func Run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	logger.Info("Starting LiveCheck daemon...")

	artifactDir := ""
	if cfg.Storage.SaveArtifacts {
		artifactDir = filepath.Join(cfg.Storage.DataDir, "artifacts")
	}
	store, err := history.NewStore(cfg.Storage.DatabasePath, artifactDir)
	if err != nil {
		return fmt.Errorf("failed to open attempt history: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Failed to close attempt history: %v", err)
		}
	}()

	var detector LandmarkDetector
	if cfg.Inference.Address != "" {
		client, err := models.NewLandmarkClient(cfg.Inference.Address, time.Duration(cfg.Inference.Timeout)*time.Second)
		if err != nil {
			logger.Warnf("Landmark service at %s unavailable, frames must carry landmarks: %v", cfg.Inference.Address, err)
		} else {
			defer func() { _ = client.Close() }()
			detector = client
			logger.Infof("Connected to landmark service on %s", cfg.Inference.Address)
		}
	}

	manager := liveness.NewManager(cfg, store, logger)
	defer manager.Close()

	listener, socketPath, err := listen(cfg.Daemon.SocketPath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(socketPath) }()

	logger.Infof("Daemon listening on %s", socketPath)

	go cleanupLockouts(ctx, manager)

	server := NewServer(manager, detector, logger)
	if err := server.Serve(ctx, listener); err != nil {
		return err
	}

	logger.Info("Daemon shutting down...")
	return nil
}

func listen(socketPath string, logger *logrus.Logger) (net.Listener, string, error) {
	if socketPath == "" {
		socketPath = fallbackSocket
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		logger.Warnf("Failed to create socket directory: %v", err)
		socketPath = fallbackSocket
	}

	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create Unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0660); err != nil {
		logger.Warnf("Failed to set socket permissions: %v", err)
	}

	return listener, socketPath, nil
}

func cleanupLockouts(ctx context.Context, manager *liveness.Manager) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			manager.CleanupExpiredLockouts()
		}
	}
}
