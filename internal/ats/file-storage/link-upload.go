package filestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var ErrUploadLinkNotConfigured = errors.New("ONEDRIVE_UPLOAD_LINK not configured")

// LinkUploader загрузка копии отчета PUT запросом по ссылке
// в папку <SUPERVISOR>/<дата>/ внутри общей папки.
type LinkUploader struct {
	link   string
	client *retryablehttp.Client
}

func NewLinkUploader(link string) *LinkUploader {
	cl := retryablehttp.NewClient()
	cl.RetryMax = 3
	cl.RetryWaitMin = time.Second
	cl.RetryWaitMax = time.Second * 5
	cl.HTTPClient.Timeout = time.Second * 30
	cl.Logger = slog.Default()
	return &LinkUploader{link: strings.TrimRight(strings.TrimSpace(link), "/"), client: cl}
}

func (u *LinkUploader) Enabled() bool {
	return u.link != ""
}

// SupervisorFolder имя папки супервайзера: пробелы заменены на "_", верхний регистр.
func SupervisorFolder(supervisor string) string {
	return strings.ToUpper(strings.ReplaceAll(supervisor, " ", "_"))
}

// UploadURL каждый сегмент пути экранируется: "/", "?" и "#" в имени супервайзера не меняют путь.
func (u *LinkUploader) UploadURL(supervisor, date, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s", u.link,
		url.PathEscape(SupervisorFolder(supervisor)), url.PathEscape(date), url.PathEscape(name))
}

// Upload успешна при ответе 200, 201 или 204.
func (u *LinkUploader) Upload(ctx context.Context, supervisor, date, name string, data []byte) error {
	if !u.Enabled() {
		return ErrUploadLinkNotConfigured
	}

	target := u.UploadURL(supervisor, date, name)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = int64(len(data))

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		slog.Info("Report uploaded by link", "file", name, "status", resp.StatusCode)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("upload %s: status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(body)))
}
