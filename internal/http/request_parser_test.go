package http

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wunschliste/internal/core"
	"wunschliste/internal/imaging"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"name": "Raclette", "category": "Hauptspeise", "amount": 42.5, "present": true}`
	req := httptest.NewRequest(http.MethodPost, "/meals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parser.Get("name"); got != "Raclette" {
		t.Errorf("Get(name) = %q", got)
	}
	if got := parser.Get("amount"); got != "42.5" {
		t.Errorf("Get(amount) = %q", got)
	}
	if !parser.Bool("present") {
		t.Error("Bool(present) = false")
	}
	if got := parser.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q", got)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "name=Kartoffel+Salat&responsible=Pia&partner=on"
	req := httptest.NewRequest(http.MethodPost, "/meals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parser.Get("name"); got != "Kartoffel Salat" {
		t.Errorf("Get(name) = %q", got)
	}
	if !parser.Bool("partner") || parser.Bool("overnight") {
		t.Error("checkbox parsing wrong")
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/meals", strings.NewReader(`{"name":`))
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseDishForm(t *testing.T) {
	p := NewRequestBodyParser(httptest.NewRequest(http.MethodPost, "/meals", strings.NewReader("name=Tiramisu&category=nachspeise")))
	_ = p.Parse()
	f, err := parseDishForm(p)
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "Tiramisu" || f.Category != core.Nachspeise {
		t.Errorf("fields = %+v", f)
	}

	p = NewRequestBodyParser(httptest.NewRequest(http.MethodPost, "/meals", strings.NewReader("name=X&category=Getränke")))
	_ = p.Parse()
	if _, err := parseDishForm(p); !errors.Is(err, core.ErrInvalidCategory) {
		t.Errorf("err = %v", err)
	}
}

func TestParseAttendance(t *testing.T) {
	days := []string{"2025-12-24", "2025-12-25", "2025-12-26"}
	body := "status_2025-12-24=present&partner_2025-12-24=on&overnight_2025-12-24=on" +
		"&status_2025-12-25=unsure&partner_2025-12-25=on" +
		"&status_2025-12-26=bogus"
	p := NewRequestBodyParser(httptest.NewRequest(http.MethodPost, "/attendance", strings.NewReader(body)))
	_ = p.Parse()

	got := parseAttendance(p, days)
	want := map[string]core.DayStatus{
		"2025-12-24": {Present: true, WithPartner: true, Overnight: true},
		"2025-12-25": {Unsure: true},
		"2025-12-26": {},
	}
	for d, st := range want {
		if got[d] != st {
			t.Errorf("%s = %+v, want %+v", d, got[d], st)
		}
	}
}

func TestPathDoor(t *testing.T) {
	tests := []struct {
		door string
		want int
		ok   bool
	}{
		{"1", 1, true},
		{"24", 24, true},
		{"0", 0, false},
		{"25", 0, false},
		{"x", 0, false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/advent/"+tt.door+"/open", nil)
		req.SetPathValue("door", tt.door)
		got, err := pathDoor(req)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("pathDoor(%q) = %d, %v", tt.door, got, err)
		}
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		for y := 0; y < 30; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 6), uint8(y * 8), 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartWish(t *testing.T, fields map[string]string, files ...[]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for i, data := range files {
		fw, err := mw.CreateFormFile("images", "bild"+string(rune('a'+i))+".png")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func TestParseWishForm(t *testing.T) {
	proc := imaging.NewProcessor(300*1024, 1280, nil)

	t.Run("multipart with image", func(t *testing.T) {
		body, ct := multipartWish(t, map[string]string{
			"wish_name":   " Fahrrad ",
			"description": "rot",
			"price":       "199,99",
			"buy_mode":    "others",
		}, testPNG(t))
		req := httptest.NewRequest(http.MethodPost, "/wishes", body)
		req.Header.Set("Content-Type", ct)

		f, err := parseWishForm(httptest.NewRecorder(), req, proc, 10<<20)
		if err != nil {
			t.Fatal(err)
		}
		if f.WishName != "Fahrrad" || !f.OthersCanBuy || f.Price == nil || f.Price.Cents != 19999 {
			t.Errorf("fields = %+v", f)
		}
		if len(f.Images) != 1 || f.Images[0].Type != "image/jpeg" {
			t.Errorf("images = %d", len(f.Images))
		}
	})

	t.Run("url encoded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/wishes", strings.NewReader("wish_name=Buch&description=Krimi&buy_mode=self"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		f, err := parseWishForm(httptest.NewRecorder(), req, proc, 10<<20)
		if err != nil {
			t.Fatal(err)
		}
		if f.WishName != "Buch" || f.OthersCanBuy || f.Price != nil || len(f.Images) != 0 {
			t.Errorf("fields = %+v", f)
		}
	})

	t.Run("bad price", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/wishes", strings.NewReader("wish_name=Buch&description=Krimi&price=viel"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if _, err := parseWishForm(httptest.NewRecorder(), req, proc, 10<<20); !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("garbage upload", func(t *testing.T) {
		body, ct := multipartWish(t, map[string]string{"wish_name": "A", "description": "B"}, []byte("not an image"))
		req := httptest.NewRequest(http.MethodPost, "/wishes", body)
		req.Header.Set("Content-Type", ct)
		if _, err := parseWishForm(httptest.NewRecorder(), req, proc, 10<<20); !errors.Is(err, imaging.ErrUnsupportedImage) {
			t.Errorf("err = %v", err)
		}
	})
}
