package splitlib

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"unicode/utf8"
)

// PDFContentType is declared on every forwarded file part and on the
// successful response.
const PDFContentType = "application/pdf"

var errNoParts = errors.New("multipart body has no parts")

// Part is one element of an inbound multipart submission.
type Part struct {
	Name     string
	Filename string
	Data     []byte
}

// IsFile reports whether the part was submitted as a file attachment.
func (p Part) IsFile() bool {
	return p.Filename != ""
}

// ReadParts parses a multipart/form-data body into its parts, in order.
// Any parse failure, and a body without parts, is reported as an
// invalid-form error.
func ReadParts(body []byte, contentType string) ([]Part, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, invalidForm(fmt.Errorf("error parsing content type: %w", err))
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, invalidForm(fmt.Errorf("unexpected content type %q", mediaType))
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, invalidForm(errors.New("no multipart boundary"))
	}

	var parts []Part
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		p, err := mr.NextRawPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, invalidForm(fmt.Errorf("error reading part: %w", err))
		}

		data, err := io.ReadAll(p)
		p.Close()
		if err != nil {
			return nil, invalidForm(fmt.Errorf("error reading part data: %w", err))
		}

		name, filename := dispositionNames(p.Header)
		parts = append(parts, Part{Name: name, Filename: filename, Data: data})
	}

	if len(parts) == 0 {
		return nil, invalidForm(errNoParts)
	}
	return parts, nil
}

// dispositionNames takes name and filename from the raw Content-Disposition
// header. multipart.Part.FileName strips directories, which would change
// what is forwarded upstream.
func dispositionNames(h textproto.MIMEHeader) (string, string) {
	disposition := h.Get("Content-Disposition")
	if disposition == "" {
		return "", ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		log.Printf("WARN: dropping part with unparsable Content-Disposition %q: %v", disposition, err)
		return "", ""
	}
	return params["name"], params["filename"]
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// BuildPayload encodes the named parts as a fresh multipart/form-data body
// and returns it with its Content-Type. Unnamed parts are dropped.
func BuildPayload(parts []Part) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range parts {
		if p.Name == "" {
			continue
		}

		if p.IsFile() {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
				quoteEscaper.Replace(p.Name), quoteEscaper.Replace(p.Filename)))
			h.Set("Content-Type", PDFContentType)
			fw, err := w.CreatePart(h)
			if err != nil {
				return nil, "", fmt.Errorf("error creating file part %q: %w", p.Name, err)
			}
			if _, err := fw.Write(p.Data); err != nil {
				return nil, "", fmt.Errorf("error writing file part %q: %w", p.Name, err)
			}
			continue
		}

		if err := w.WriteField(p.Name, decodeText(p.Data)); err != nil {
			return nil, "", fmt.Errorf("error writing field %q: %w", p.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("error closing multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// decodeText converts data to a UTF-8 string, replacing each maximal
// subpart of an ill-formed sequence with one U+FFFD (the WHATWG decoder
// behaviour browsers and Node use).
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	var sb strings.Builder
	sb.Grow(len(data) + 8)
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError || size > 1 {
			sb.Write(data[:size])
			data = data[size:]
			continue
		}
		sb.WriteRune(utf8.RuneError)
		data = data[maximalSubpart(data):]
	}
	return sb.String()
}

// maximalSubpart returns the length of the longest prefix of b that starts
// a well-formed sequence, or 1 if b[0] cannot start one. b must begin with
// an ill-formed sequence.
func maximalSubpart(b []byte) int {
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch lead := b[0]; {
	case lead >= 0xC2 && lead <= 0xDF:
		need = 1
	case lead == 0xE0:
		need, lo = 2, 0xA0
	case lead == 0xED:
		need, hi = 2, 0x9F
	case lead >= 0xE1 && lead <= 0xEF:
		need = 2
	case lead == 0xF0:
		need, lo = 3, 0x90
	case lead == 0xF4:
		need, hi = 3, 0x8F
	case lead >= 0xF1 && lead <= 0xF3:
		need = 3
	default:
		return 1
	}

	n := 1
	for n <= need && n < len(b) && b[n] >= lo && b[n] <= hi {
		lo, hi = 0x80, 0xBF
		n++
	}
	return n
}
