package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/sketch-match/internal/mock"
)

func TestImagesHandler_Get(t *testing.T) {
	store := mock.NewObjectStore("forensics")
	store.Add("Photos/a.jpg", []byte("jpeg bytes"), "image/jpeg")
	store.Add("Photos/b.png", []byte("\x89PNG\r\n\x1a\nrest"), "")
	handler := NewImagesHandler(store, "Photos/")

	t.Run("found", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/a.jpg", nil), map[string]string{"imageID": "a.jpg"})
		handler.Get(recorder, req)

		assertStatusCode(t, recorder, http.StatusOK)
		assertContentType(t, recorder, "image/jpeg")
		if recorder.Body.String() != "jpeg bytes" {
			t.Errorf("unexpected body %q", recorder.Body.String())
		}
		if recorder.Header().Get("Content-Length") != "10" {
			t.Errorf("expected Content-Length 10, got %q", recorder.Header().Get("Content-Length"))
		}
	})

	t.Run("sniffs missing content type", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/b.png", nil), map[string]string{"imageID": "b.png"})
		handler.Get(recorder, req)

		assertStatusCode(t, recorder, http.StatusOK)
		assertContentType(t, recorder, "image/png")
	})

	t.Run("not found", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/missing.jpg", nil), map[string]string{"imageID": "missing.jpg"})
		handler.Get(recorder, req)

		assertStatusCode(t, recorder, http.StatusNotFound)
		assertJSONError(t, recorder, "image not found")
	})

	for _, id := range []string{"", "..", `..\a.jpg`} {
		t.Run("invalid "+id, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/x", nil), map[string]string{"imageID": id})
			handler.Get(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, "invalid image id")
		})
	}
}

func TestImagesHandler_Get_StoreFailure(t *testing.T) {
	store := mock.NewObjectStore("forensics")
	store.GetError = errors.New("connection reset")
	handler := NewImagesHandler(store, "Photos/")

	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/a.jpg", nil), map[string]string{"imageID": "a.jpg"})
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadGateway)
	assertJSONError(t, recorder, "failed to fetch image")
}
