package search

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/emergent-company/emergent.kos/domain/kos"
	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeWeaviate answers the subset of the Weaviate REST and GraphQL API the index uses.
type fakeWeaviate struct {
	mu       sync.Mutex
	requests []string
	queries  []string
	objects  []map[string]any
	classes  map[string]bool
	results  map[string]any
}

func newFakeWeaviate(t *testing.T) (*fakeWeaviate, *httptest.Server) {
	t.Helper()
	f := &fakeWeaviate{classes: map[string]bool{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeWeaviate) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/v1/meta":
		_, _ = w.Write([]byte(`{"version":"1.35.2"}`))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/schema/"):
		class := strings.TrimPrefix(r.URL.Path, "/v1/schema/")
		if !f.classes[class] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"class":"` + class + `"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v1/schema":
		var class struct {
			Class string `json:"class"`
		}
		_ = json.Unmarshal(body, &class)
		f.classes[class.Class] = true
		_, _ = w.Write(body)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v1/schema/"):
		class := strings.TrimPrefix(r.URL.Path, "/v1/schema/")
		if !f.classes[class] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.classes, class)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/objects":
		var obj map[string]any
		_ = json.Unmarshal(body, &obj)
		f.objects = append(f.objects, obj)
		_, _ = w.Write(body)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v1/objects/"):
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/graphql":
		var q struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(body, &q)
		f.queries = append(f.queries, q.Query)
		out, _ := json.Marshal(map[string]any{"data": map[string]any{"Get": f.results}})
		_, _ = w.Write(out)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestWeaviate(t *testing.T, srv *httptest.Server, languages ...string) *Weaviate {
	t.Helper()
	w, err := NewWeaviate(config.SearchConfig{
		URL:                      srv.URL + "/",
		Languages:                languages,
		ExcludeIfLanguageMissing: true,
		Vectorizer:               "none",
	}, quietLogger())
	require.NoError(t, err)
	return w
}

func TestClassName(t *testing.T) {
	tests := map[string]string{
		"en":    "KosConceptEn",
		"pt-BR": "KosConceptPtBr",
		"de_AT": "KosConceptDeAt",
		"":      "KosConcept",
	}
	for lang, want := range tests {
		assert.Equal(t, want, ClassName(lang), lang)
	}
}

func TestObjectID_Stable(t *testing.T) {
	a := ObjectID("http://example.org/c/1")
	assert.Equal(t, a, ObjectID("http://example.org/c/1"))
	assert.NotEqual(t, a, ObjectID("http://example.org/c/2"))
	assert.Len(t, a, 36)
}

func TestDisabled(t *testing.T) {
	var d Disabled
	assert.False(t, d.Configured())
	_, err := d.Search(t.Context(), Query{Text: "x", Language: "en"})
	assert.True(t, apperror.Is(err, apperror.ErrSearchNotConfigured))
	assert.True(t, apperror.Is(d.CreateConcept(t.Context(), &kos.Concept{}), apperror.ErrSearchNotConfigured))
}

func TestNewIndex_Unconfigured(t *testing.T) {
	idx, err := NewIndex(&config.Config{}, quietLogger())
	require.NoError(t, err)
	assert.False(t, idx.Configured())
}

func TestWeaviate_LanguagesDeduplicated(t *testing.T) {
	_, srv := newFakeWeaviate(t)
	w := newTestWeaviate(t, srv, "en", " fr", "en", "")
	assert.Equal(t, []string{"en", "fr"}, w.order)
}

func TestWeaviate_InitializeCreatesMissingClasses(t *testing.T) {
	fake, srv := newFakeWeaviate(t)
	fake.classes["KosConceptEn"] = true
	w := newTestWeaviate(t, srv, "en", "fr")

	require.NoError(t, w.Initialize(t.Context()))
	assert.True(t, fake.classes["KosConceptFr"])
	assert.Contains(t, fake.requests, "POST /v1/schema")
}

func TestWeaviate_CreateConceptSkipsMissingLanguages(t *testing.T) {
	fake, srv := newFakeWeaviate(t)
	w := newTestWeaviate(t, srv, "en", "fr")

	c := &kos.Concept{
		IRI: "http://example.org/c/1",
		Descriptive: kos.Descriptive{
			PrefLabels: []kos.Literal{{Value: "Steel", Language: "en"}},
			AltLabels:  []kos.Literal{{Value: "Iron alloy", Language: "en"}, {Value: "Acier", Language: "fr"}},
		},
	}
	require.NoError(t, w.CreateConcept(t.Context(), c))

	require.Len(t, fake.objects, 1)
	obj := fake.objects[0]
	assert.Equal(t, "KosConceptEn", obj["class"])
	assert.Equal(t, ObjectID(c.IRI), obj["id"])
	props := obj["properties"].(map[string]any)
	assert.Equal(t, "Steel", props["prefLabel"])
	assert.Equal(t, []any{"Iron alloy"}, props["altLabels"])
}

func TestWeaviate_DeleteIgnoresMissing(t *testing.T) {
	_, srv := newFakeWeaviate(t)
	w := newTestWeaviate(t, srv, "en")
	assert.NoError(t, w.DeleteConcept(t.Context(), "http://example.org/c/1"))
}

func TestWeaviate_SearchModes(t *testing.T) {
	fake, srv := newFakeWeaviate(t)
	fake.results = map[string]any{
		"KosConceptEn": []any{
			map[string]any{"iri": "http://example.org/c/1", "prefLabel": "Steel", "altLabels": []any{"Iron alloy"}},
		},
	}
	w := newTestWeaviate(t, srv, "en")

	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"lexical", Query{Text: "steel", Language: "en"}, "bm25"},
		{"semantic", Query{Text: "steel", Language: "en", Semantic: true}, "nearText"},
		{"prefix", Query{Text: "ste", Language: "en", Prefix: true}, "Like"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := w.Search(t.Context(), tt.query)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "Steel", results[0].PrefLabel)
			assert.Equal(t, []string{"Iron alloy"}, results[0].AltLabels)
			assert.Contains(t, fake.queries[len(fake.queries)-1], tt.want)
		})
	}
}

func TestWeaviate_UnknownLanguage(t *testing.T) {
	_, srv := newFakeWeaviate(t)
	w := newTestWeaviate(t, srv, "en", "fr")

	_, err := w.Suggest(t.Context(), "ste", "xx")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrUnknownLanguage))
	assert.Contains(t, err.Error(), "en, fr")
}

func TestParseResults_Malformed(t *testing.T) {
	assert.Empty(t, parseResults(nil, "KosConceptEn"))
	assert.Empty(t, parseResults(map[string]models.JSONObject{"Get": map[string]any{"Other": []any{}}}, "KosConceptEn"))
}
