package types

import "encoding/json"

// FileData is the local preview of a workbook's first sheet.
type FileData struct {
	Sheet   string
	Headers []string
	// Keys are the JSON keys the backend derives from Headers.
	Keys     []string
	DataRows int
}

// Mapping selects and renames columns for an upload.
type Mapping struct {
	ColumnIndexes []int
	CustomKeys    []string
}

type ParseResult struct {
	InputFile string
	Records   []json.RawMessage
	Raw       []byte
	Pretty    string
	Count     int
}

type DownloadResult struct {
	OutputFile string
	Size       int64
	Sheet      string
	Columns    []string
	DataRows   int
}
