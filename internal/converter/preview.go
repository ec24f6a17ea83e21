package converter

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/nconklindev/sandbox/internal/types"
)

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	nonKeyCharacter = regexp.MustCompile(`[^a-zA-Z0-9_]`)
)

// NormalizeHeaderKey turns a header cell into the JSON key the backend
// uses for it: "Họ và tên" becomes "HO_VA_TEN".
func NormalizeHeaderKey(header string) string {
	s := strings.ToUpper(strings.TrimSpace(header))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	s = strings.NewReplacer("đ", "d", "Đ", "D").Replace(s)
	s = whitespaceRun.ReplaceAllString(s, "_")

	return nonKeyCharacter.ReplaceAllString(s, "")
}

// PreviewHeaders reads the header row of the first sheet so columns can be
// picked by name before uploading.
func PreviewHeaders(path string) (*types.FileData, error) {
	if err := ValidateUpload(path); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return readFirstSheet(f)
}

// inspectWorkbook summarises a workbook held in memory.
func inspectWorkbook(data []byte) (*types.FileData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return readFirstSheet(f)
}

func readFirstSheet(f *excelize.File) (*types.FileData, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	data := &types.FileData{Sheet: sheets[0]}
	if len(rows) == 0 {
		return data, nil
	}

	data.Headers = rows[0]
	data.Keys = make([]string, len(rows[0]))
	for i, h := range rows[0] {
		data.Keys[i] = NormalizeHeaderKey(h)
	}
	data.DataRows = len(rows) - 1

	return data, nil
}

// ValidateUpload checks path names a non-empty .xlsx file.
func ValidateUpload(path string) error {
	if !strings.HasSuffix(path, ".xlsx") {
		return fmt.Errorf("unsupported file type %q: only .xlsx files can be uploaded", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}
