package client

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type filePart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

// Form is a multipart body of text fields plus optional file parts.
type Form struct {
	fields [][2]string
	files  []filePart
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{}
}

// Field appends a text field.
func (f *Form) Field(name, value string) *Form {
	f.fields = append(f.fields, [2]string{name, value})
	return f
}

// File appends a binary part.
func (f *Form) File(field, filename, contentType string, data []byte) *Form {
	f.files = append(f.files, filePart{field: field, filename: filename, contentType: contentType, data: data})
	return f
}

func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}

	for _, file := range f.files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(file.field), quoteEscaper.Replace(file.filename)))
		contentType := file.contentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
