// Package converter drives the backend conversions: spreadsheet upload to
// JSON and JSON array download as a spreadsheet.
package converter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nconklindev/sandbox/internal/api"
	"github.com/nconklindev/sandbox/internal/types"
)

// DownloadName is the file name used for generated spreadsheets.
const DownloadName = "data.xlsx"

// Service runs conversions against the backend.
type Service struct {
	client *api.Client
	logger *zap.Logger
}

func NewService(client *api.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger}
}

// ExcelToJSON uploads the workbook at path and returns the parsed records.
// Upload progress is reported on progressChan without blocking.
func (s *Service) ExcelToJSON(ctx context.Context, path string, m types.Mapping, progressChan chan<- float64) (*types.ParseResult, error) {
	if err := ValidateUpload(path); err != nil {
		return nil, err
	}
	if err := ValidateMapping(m); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	form := &api.MultipartForm{}
	form.AddFile("file", filepath.Base(path), api.ContentTypeXLSX, data)
	for _, idx := range m.ColumnIndexes {
		form.Add("columnIndexes", strconv.Itoa(idx))
	}
	for _, key := range m.CustomKeys {
		form.Add("customKeys", key)
	}
	if progressChan != nil {
		form.OnProgress = func(p float64) {
			select {
			case progressChan <- p:
			default:
			}
		}
	}

	s.logger.Info("uploading workbook",
		zap.String("file", path),
		zap.Ints("columns", m.ColumnIndexes),
		zap.Strings("keys", m.CustomKeys))

	resp, err := s.client.Call(ctx, api.UploadExcel, form, nil, nil)
	if err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(resp.Body, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	pretty, err := FormatJSON(string(resp.Body))
	if err != nil {
		return nil, err
	}

	return &types.ParseResult{
		InputFile: path,
		Records:   records,
		Raw:       resp.Body,
		Pretty:    pretty,
		Count:     len(records),
	}, nil
}

// JSONToExcel posts a JSON array and saves the returned workbook in outDir.
func (s *Service) JSONToExcel(ctx context.Context, text, outDir string) (*types.DownloadResult, error) {
	payload, err := ValidateJSONArray(text)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Call(ctx, api.JSONToExcel, payload, nil, nil)
	if err != nil {
		return nil, err
	}

	info, err := inspectWorkbook(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend returned an unreadable workbook: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out, err := writeUnique(outDir, DownloadName, resp.Body)
	if err != nil {
		return nil, err
	}

	s.logger.Info("saved workbook", zap.String("file", out), zap.Int("bytes", len(resp.Body)))

	return &types.DownloadResult{
		OutputFile: out,
		Size:       int64(len(resp.Body)),
		Sheet:      info.Sheet,
		Columns:    info.Headers,
		DataRows:   info.DataRows,
	}, nil
}

// writeUnique saves data as dir/name, or "name (n).ext" when taken, the
// way a browser names repeated downloads.
func writeUnique(dir, name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 0; n < 1000; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}
