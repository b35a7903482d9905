// This file implements utilities for parsing and validating HTTP request
// data: the wish form with its uploads, and the small JSON or form bodies
// htmx sends for everything else.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"wunschliste/internal/core"
	"wunschliste/internal/imaging"
)

// maxSimpleBody bounds bodies read by RequestBodyParser.
const maxSimpleBody = 1 << 20

var errMalformedForm = errors.New("malformed form")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and keeps it for parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxSimpleBody))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Bool reads a checkbox style value.
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "on", "true", "1", "yes", "ja":
		return true
	}
	return false
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseBody parses a simple body or answers 400.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Ungültige Anfrage").Write(w)
		return nil, false
	}
	return p, true
}

// parsePrice reads an optional amount.
func parsePrice(s string) (*core.Money, error) {
	m, err := core.ParsePrice(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidAmount, s)
	}
	return m, nil
}

// parseWishForm reads the wish or suggestion form, compressing any
// uploaded pictures. Plain url-encoded submissions are accepted too.
func parseWishForm(w http.ResponseWriter, r *http.Request, images *imaging.Processor, maxUpload int64) (core.WishFields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return core.WishFields{}, fmt.Errorf("%w: %v", errMalformedForm, err)
	}

	get := func(k string) string { return sanitizeInput(r.PostFormValue(k)) }
	price, err := parsePrice(get("price"))
	if err != nil {
		return core.WishFields{}, err
	}

	f := core.WishFields{
		WishName:          get("wish_name"),
		Description:       get("description"),
		Link:              get("link"),
		Price:             price,
		Note:              get("note"),
		Color:             get("color"),
		OthersCanBuy:      get("buy_mode") == "others",
		ResponsiblePerson: get("responsible_person"),
	}

	if r.MultipartForm == nil {
		return f, nil
	}
	for _, fh := range r.MultipartForm.File["images"] {
		if fh.Size == 0 {
			continue
		}
		file, err := fh.Open()
		if err != nil {
			return core.WishFields{}, fmt.Errorf("%w: %v", errMalformedForm, err)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return core.WishFields{}, fmt.Errorf("%w: %v", errMalformedForm, err)
		}
		img, err := images.Compress(data)
		if err != nil {
			return core.WishFields{}, fmt.Errorf("image %s: %w", fh.Filename, err)
		}
		f.Images = append(f.Images, img)
	}
	return f, nil
}

// parseDishForm reads a meal proposal.
func parseDishForm(p *RequestBodyParser) (core.DishFields, error) {
	cat, err := core.ParseCategory(p.Get("category"))
	if err != nil {
		return core.DishFields{}, err
	}
	return core.DishFields{
		Name:        p.Get("name"),
		Category:    cat,
		Description: p.Get("description"),
		Responsible: p.Get("responsible"),
	}, nil
}

// parseAttendance reads one status field per event day. Missing or
// unknown answers count as absent.
func parseAttendance(p *RequestBodyParser, days []string) map[string]core.DayStatus {
	out := make(map[string]core.DayStatus, len(days))
	for _, d := range days {
		var st core.DayStatus
		switch p.Get("status_" + d) {
		case "present":
			st.Present = true
			st.WithPartner = p.Bool("partner_" + d)
			st.Overnight = p.Bool("overnight_" + d)
		case "unsure":
			st.Unsure = true
		}
		out[d] = st
	}
	return out
}

// pathDoor reads the {door} path segment.
func pathDoor(r *http.Request) (int, error) {
	d, err := strconv.Atoi(r.PathValue("door"))
	if err != nil || d < 1 || d > core.AdventDoors {
		return 0, core.ErrInvalidDoor
	}
	return d, nil
}

// isMalformed reports errors caused by a broken or oversized request body.
func isMalformed(err error) bool {
	var tooBig *http.MaxBytesError
	return errors.Is(err, errMalformedForm) || errors.As(err, &tooBig)
}
