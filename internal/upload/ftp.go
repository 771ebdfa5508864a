// Package upload transfers generated artifacts to the public web host.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/MrCodingRobot/EmergencyStations/internal/metrics"
	"github.com/MrCodingRobot/EmergencyStations/internal/publish"
)

const ftpTimeout = 30 * time.Second

type FTPConfig struct {
	Addr     string
	Username string
	Password string
	// UploadDir receives CSV and XLSX artifacts; PDFDir receives plots,
	// which the site's PDF viewer can only read from its own directory.
	UploadDir string
	PDFDir    string
}

type FTPUploader struct {
	cfg    FTPConfig
	logger *slog.Logger
}

func NewFTPUploader(cfg FTPConfig, logger *slog.Logger) *FTPUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FTPUploader{cfg: cfg, logger: logger}
}

// RemoteDir returns the directory an artifact of category c belongs in.
func (u *FTPUploader) RemoteDir(c publish.Category) string {
	if c == publish.CategoryPlots {
		return u.cfg.PDFDir
	}
	return u.cfg.UploadDir
}

// Upload stores every artifact under its remote directory over a single
// connection. It attempts all artifacts and returns the joined errors.
func (u *FTPUploader) Upload(ctx context.Context, artifacts []publish.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	conn, err := ftp.Dial(u.cfg.Addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(ftpTimeout))
	if err != nil {
		return fmt.Errorf("ftp dial %s: %w", u.cfg.Addr, err)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			u.logger.Debug("ftp quit", "error", err)
		}
	}()

	if err := conn.Login(u.cfg.Username, u.cfg.Password); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}

	var errs []error
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		remote := path.Join(u.RemoteDir(a.Category), filepath.Base(a.Path))
		if err := u.store(conn, a.Path, remote); err != nil {
			metrics.Uploads.WithLabelValues(string(a.Category), "error").Inc()
			errs = append(errs, fmt.Errorf("upload %s: %w", remote, err))
			continue
		}
		metrics.Uploads.WithLabelValues(string(a.Category), "ok").Inc()
		u.logger.Info("artifact uploaded", "category", a.Category, "remote", remote)
	}
	return errors.Join(errs...)
}

func (u *FTPUploader) store(conn *ftp.ServerConn, local, remote string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()
	return conn.Stor(remote, f)
}
