package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/emergent-company/emergent.kos/domain/kos"
	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
	"github.com/emergent-company/emergent.kos/pkg/logger"
)

const classPrefix = "KosConcept"

var resultFields = []graphql.Field{
	{Name: "iri"},
	{Name: "prefLabel"},
	{Name: "altLabels"},
	{Name: "definition"},
	{Name: "notation"},
}

// Weaviate indexes concepts into one Weaviate class per language.
type Weaviate struct {
	client         *weaviate.Client
	languages      map[string]struct{}
	order          []string
	excludeMissing bool
	vectorizer     string
	log            *slog.Logger
}

// NewWeaviate creates the Weaviate-backed index.
func NewWeaviate(cfg config.SearchConfig, log *slog.Logger) (*Weaviate, error) {
	wcfg := weaviate.Config{Host: cfg.URL, Scheme: "http"}
	switch {
	case strings.HasPrefix(cfg.URL, "https://"):
		wcfg.Scheme = "https"
		wcfg.Host = strings.TrimPrefix(cfg.URL, "https://")
	case strings.HasPrefix(cfg.URL, "http://"):
		wcfg.Host = strings.TrimPrefix(cfg.URL, "http://")
	}
	wcfg.Host = strings.TrimSuffix(wcfg.Host, "/")
	if cfg.APIKey != "" {
		wcfg.Headers = map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	}
	if cfg.Timeout > 0 {
		wcfg.ConnectionClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	w := &Weaviate{
		client:         client,
		languages:      make(map[string]struct{}, len(cfg.Languages)),
		excludeMissing: cfg.ExcludeIfLanguageMissing,
		vectorizer:     cfg.Vectorizer,
		log:            log.With(logger.Scope("search.weaviate")),
	}
	for _, lang := range cfg.Languages {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		if _, dup := w.languages[lang]; !dup {
			w.languages[lang] = struct{}{}
			w.order = append(w.order, lang)
		}
	}
	return w, nil
}

// ClassName returns the Weaviate class holding concepts for lang, e.g. KosConceptEn.
func ClassName(lang string) string {
	var b strings.Builder
	b.WriteString(classPrefix)
	upper := true
	for _, r := range lang {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		} else {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ObjectID derives the Weaviate object id from the concept IRI.
func ObjectID(iri string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(iri)).String()
}

func (w *Weaviate) Configured() bool { return true }

func (w *Weaviate) classSchema(lang string) *models.Class {
	text := func(name, tokenization string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"text"}, Tokenization: tokenization}
	}
	texts := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"text[]"}, Tokenization: "word"}
	}
	return &models.Class{
		Class:       ClassName(lang),
		Description: "KOS concepts labelled in language " + lang,
		Vectorizer:  w.vectorizer,
		Properties: []*models.Property{
			text("iri", "field"),
			text("prefLabel", "word"),
			texts("altLabels"),
			texts("hiddenLabels"),
			text("definition", "word"),
			texts("notation"),
			texts("allLanguagesPrefLabels"),
		},
	}
}

// Initialize creates the per-language classes that do not exist yet.
func (w *Weaviate) Initialize(ctx context.Context) error {
	for _, lang := range w.order {
		class := ClassName(lang)
		if _, err := w.client.Schema().ClassGetter().WithClassName(class).Do(ctx); err == nil {
			continue
		}
		if err := w.client.Schema().ClassCreator().WithClass(w.classSchema(lang)).Do(ctx); err != nil {
			return fmt.Errorf("create class %s: %w", class, err)
		}
		w.log.Info("search class created", slog.String("class", class))
	}
	return nil
}

// Reset drops and recreates every per-language class.
func (w *Weaviate) Reset(ctx context.Context) error {
	for _, lang := range w.order {
		class := ClassName(lang)
		if err := w.client.Schema().ClassDeleter().WithClassName(class).Do(ctx); err != nil && !isNotFound(err) {
			return fmt.Errorf("delete class %s: %w", class, err)
		}
	}
	return w.Initialize(ctx)
}

func isNotFound(err error) bool {
	var werr *fault.WeaviateClientError
	return errors.As(err, &werr) && werr.StatusCode == http.StatusNotFound
}

// document returns the properties indexed for c in lang, or false when the concept has no
// preferred label in lang and such concepts are excluded.
func (w *Weaviate) document(c *kos.Concept, lang string) (map[string]any, bool) {
	pref := c.PrefLabel(lang)
	if pref == "" && w.excludeMissing {
		return nil, false
	}
	inLang := func(ls []kos.Literal) []string {
		out := []string{}
		for _, l := range ls {
			if l.Language == lang {
				out = append(out, l.Value)
			}
		}
		return out
	}
	all := func(ls []kos.Literal) []string {
		out := make([]string, 0, len(ls))
		for _, l := range ls {
			out = append(out, l.Value)
		}
		return out
	}
	definition := ""
	if defs := inLang(c.Definitions); len(defs) > 0 {
		definition = defs[0]
	}
	return map[string]any{
		"iri":                    c.IRI,
		"prefLabel":              pref,
		"altLabels":              inLang(c.AltLabels),
		"hiddenLabels":           inLang(c.HiddenLabels),
		"definition":             definition,
		"notation":               all(c.Notations),
		"allLanguagesPrefLabels": all(c.PrefLabels),
	}, true
}

// CreateConcept adds c to every language class it qualifies for.
func (w *Weaviate) CreateConcept(ctx context.Context, c *kos.Concept) error {
	id := ObjectID(c.IRI)
	for _, lang := range w.order {
		doc, ok := w.document(c, lang)
		if !ok {
			continue
		}
		_, err := w.client.Data().Creator().
			WithClassName(ClassName(lang)).
			WithID(id).
			WithProperties(doc).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("index concept %s (%s): %w", c.IRI, lang, err)
		}
	}
	return nil
}

// UpdateConcept replaces c in every language class.
func (w *Weaviate) UpdateConcept(ctx context.Context, c *kos.Concept) error {
	if err := w.DeleteConcept(ctx, c.IRI); err != nil {
		return err
	}
	return w.CreateConcept(ctx, c)
}

// DeleteConcept removes the concept from every language class; absent objects are ignored.
func (w *Weaviate) DeleteConcept(ctx context.Context, iri string) error {
	id := ObjectID(iri)
	for _, lang := range w.order {
		err := w.client.Data().Deleter().
			WithClassName(ClassName(lang)).
			WithID(id).
			Do(ctx)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("remove concept %s (%s): %w", iri, lang, err)
		}
	}
	return nil
}

func (w *Weaviate) checkLanguage(lang string) error {
	if _, ok := w.languages[lang]; !ok {
		return apperror.ErrUnknownLanguage.WithMessagef(
			"Search engine not configured for language `%s`; available: %s", lang, strings.Join(w.order, ", "))
	}
	return nil
}

// Search runs a semantic (nearText), prefix (Like) or lexical (BM25) query in one language.
func (w *Weaviate) Search(ctx context.Context, q Query) ([]Result, error) {
	if err := w.checkLanguage(q.Language); err != nil {
		return nil, err
	}
	class := ClassName(q.Language)
	gql := w.client.GraphQL()
	get := gql.Get().
		WithClassName(class).
		WithFields(resultFields...).
		WithLimit(MaxResults)

	switch {
	case q.Prefix:
		get = get.WithWhere(filters.Where().
			WithPath([]string{"prefLabel"}).
			WithOperator(filters.Like).
			WithValueText(q.Text + "*"))
	case q.Semantic:
		get = get.WithNearText(gql.NearTextArgBuilder().WithConcepts([]string{q.Text}))
	default:
		get = get.WithBM25(gql.Bm25ArgBuilder().
			WithQuery(q.Text).
			WithProperties("prefLabel", "altLabels", "hiddenLabels", "definition", "notation", "allLanguagesPrefLabels"))
	}

	result, err := get.Do(ctx)
	if err != nil {
		w.log.Error("search failed", logger.Error(err), slog.String("class", class))
		return nil, apperror.ErrServiceUnavailable.WithMessage("search backend unavailable").WithInternal(err)
	}
	if len(result.Errors) > 0 {
		return nil, apperror.ErrInternal.WithMessagef("search error: %s", result.Errors[0].Message)
	}
	return parseResults(result.Data, class), nil
}

// Suggest returns concepts whose preferred label starts with text.
func (w *Weaviate) Suggest(ctx context.Context, text, language string) ([]Result, error) {
	return w.Search(ctx, Query{Text: text, Language: language, Prefix: true})
}

func parseResults(data map[string]models.JSONObject, class string) []Result {
	out := []Result{}
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return out
	}
	objects, ok := get[class].([]interface{})
	if !ok {
		return out
	}
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, Result{
			IRI:        getString(m, "iri"),
			PrefLabel:  getString(m, "prefLabel"),
			AltLabels:  getStrings(m, "altLabels"),
			Definition: getString(m, "definition"),
			Notations:  getStrings(m, "notation"),
		})
	}
	return out
}

func getString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func getStrings(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
