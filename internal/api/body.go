package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
)

// FormField is one (possibly repeated) text field of a multipart form.
type FormField struct {
	Name  string
	Value string
}

// FormFile is one file part of a multipart form.
type FormFile struct {
	Field       string
	FileName    string
	ContentType string
	Data        []byte
}

// MultipartForm is a payload sent as multipart/form-data. Fields keep their
// order, so repeated names arrive as a list on the server.
type MultipartForm struct {
	Files  []FormFile
	Fields []FormField
	// OnProgress receives the fraction of the body written so far.
	OnProgress func(fraction float64)
}

// Add appends a text field.
func (f *MultipartForm) Add(name, value string) {
	f.Fields = append(f.Fields, FormField{Name: name, Value: value})
}

// AddFile appends a file part.
func (f *MultipartForm) AddFile(field, fileName, contentType string, data []byte) {
	f.Files = append(f.Files, FormFile{Field: field, FileName: fileName, ContentType: contentType, Data: data})
}

func (f *MultipartForm) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, file := range f.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.FileName))
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}

	for _, field := range f.Fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// requestBody is an encoded payload that can be replayed on retry.
type requestBody struct {
	data        []byte
	contentType string
	onProgress  func(float64)
}

func (b *requestBody) reader() io.Reader {
	if b == nil {
		return nil
	}
	r := bytes.NewReader(b.data)
	if b.onProgress == nil {
		return r
	}
	return &progressReader{r: r, total: int64(len(b.data)), report: b.onProgress}
}

// encodeBody turns a payload into bytes. contentType is empty when the
// endpoint headers should decide.
func encodeBody(payload any) (*requestBody, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case *MultipartForm:
		data, ct, err := p.encode()
		if err != nil {
			return nil, err
		}
		return &requestBody{data: data, contentType: ct, onProgress: p.OnProgress}, nil
	case []byte:
		return &requestBody{data: p}, nil
	case json.RawMessage:
		return &requestBody{data: p, contentType: ContentTypeJSON}, nil
	case io.Reader:
		data, err := io.ReadAll(p)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return &requestBody{data: data}, nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return &requestBody{data: data, contentType: ContentTypeJSON}, nil
	}
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && n > 0 {
		p.report(float64(p.read) / float64(p.total))
	}
	return n, err
}
