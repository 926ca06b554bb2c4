package exercisedb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	search func(name string) ([]Exercise, error)
	get    func(id string) (*Exercise, error)
}

func (s *stubSource) SearchByName(_ context.Context, name string) ([]Exercise, error) {
	return s.search(name)
}

func (s *stubSource) GetByID(_ context.Context, id string) (*Exercise, error) {
	return s.get(id)
}

func newTestRouter(source *stubSource) *mux.Router {
	r := mux.NewRouter()
	NewHandler(source).SetupRoutes(r)
	return r
}

func TestHandler_Search(t *testing.T) {
	r := newTestRouter(&stubSource{
		search: func(name string) ([]Exercise, error) {
			if name == "down" {
				return nil, errors.New("timeout")
			}
			assert.Equal(t, "bench", name)
			return []Exercise{benchPress}, nil
		},
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/exercises/search?name=bench", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var exercises []Exercise
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &exercises))
	assert.Equal(t, []Exercise{benchPress}, exercises)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/exercises/search?name=", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/exercises/search?name=down", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestHandler_Get(t *testing.T) {
	r := newTestRouter(&stubSource{
		get: func(id string) (*Exercise, error) {
			switch id {
			case "0025":
				e := benchPress
				return &e, nil
			case "0000":
				return nil, ErrNotFound
			default:
				return nil, errors.New("timeout")
			}
		},
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/exercises/0025", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var exercise Exercise
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &exercise))
	assert.Equal(t, benchPress, exercise)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/exercises/0000", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/exercises/1234", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}
