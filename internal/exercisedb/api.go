package exercisedb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/2beens/fittrack/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// example API call
// https://exercisedb.p.rapidapi.com/exercises/name/bench%20press?limit=20

const (
	oneHour             = 60 * 60
	exerciseCacheExpire = oneHour * 1
	searchLimit         = 20
)

var ErrNotFound = errors.New("exercise not found")

type Api struct {
	cache      *freecache.Cache
	baseURL    string
	apiKey     string
	apiHost    string
	httpClient *http.Client
}

func NewApi(baseURL, apiKey string, httpClient *http.Client) (*Api, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse exercise db url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("exercise db url %q has no host", baseURL)
	}

	megabyte := 1024 * 1024
	cacheSize := 10 * megabyte

	return &Api{
		cache:      freecache.NewCache(cacheSize),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		apiHost:    parsed.Host,
		httpClient: httpClient,
	}, nil
}

// SearchByName returns exercises whose name contains the given text.
func (a *Api) SearchByName(ctx context.Context, name string) (exercises []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exerciseDbApi.searchByName")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	name = strings.ToLower(strings.TrimSpace(name))
	span.SetAttributes(attribute.String("name", name))

	cacheKey := "search::" + name
	exercises = []Exercise{}
	if cached, err := a.cache.Get([]byte(cacheKey)); err == nil {
		if err = json.Unmarshal(cached, &exercises); err == nil {
			log.Tracef("exercise search [%s] found in cache", name)
			return exercises, nil
		}
		log.Errorf("failed to unmarshal exercise search [%s] from cache: %s", name, err)
	}

	apiURL := fmt.Sprintf("%s/exercises/name/%s?limit=%d", a.baseURL, url.PathEscape(name), searchLimit)
	respBytes, err := a.get(ctx, apiURL)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Exercise{}, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(respBytes, &exercises); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exercise search response: %w", err)
	}

	if err = a.cache.Set([]byte(cacheKey), respBytes, exerciseCacheExpire); err != nil {
		log.Errorf("failed to write exercise search cache for %s: %s", name, err)
	}
	return exercises, nil
}

func (a *Api) GetByID(ctx context.Context, id string) (exercise *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exerciseDbApi.getByID")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("id", id))

	exercise = &Exercise{}
	cacheKey := "exercise::" + id
	if cached, err := a.cache.Get([]byte(cacheKey)); err == nil {
		if err = json.Unmarshal(cached, exercise); err == nil {
			log.Tracef("exercise %s found in cache", id)
			return exercise, nil
		}
		log.Errorf("failed to unmarshal exercise %s from cache: %s", id, err)
	}

	respBytes, err := a.get(ctx, fmt.Sprintf("%s/exercises/exercise/%s", a.baseURL, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(respBytes, exercise); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exercise response: %w", err)
	}
	// the API answers unknown ids with an empty object
	if exercise.ID == "" {
		return nil, ErrNotFound
	}

	if err = a.cache.Set([]byte(cacheKey), respBytes, exerciseCacheExpire); err != nil {
		log.Errorf("failed to write exercise cache for %s: %s", id, err)
	}
	return exercise, nil
}

func (a *Api) get(ctx context.Context, apiURL string) ([]byte, error) {
	log.Debugf("calling exercise db api: %s", apiURL)

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", a.apiKey)
	req.Header.Set("X-RapidAPI-Host", a.apiHost)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read exercise db response bytes: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("exercise db api status %d: %s", resp.StatusCode, respBytes)
	}
	return respBytes, nil
}
