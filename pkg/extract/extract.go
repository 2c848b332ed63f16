// Package extract turns fetched item pages into normalized Records.
package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pemistahl/lingua-go"

	"carwatch/models"
	"carwatch/pkg/fetcher"
)

// ExtractionError is a single-item extraction failure. The orchestrator
// drops the item from its batch and continues.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor fetches one item page at a time and normalizes the parsed
// sections into a Record.
type Extractor struct {
	provider fetcher.Provider
	detector lingua.LanguageDetector
	logger   *slog.Logger
}

// New creates an Extractor. The language detector covers the two
// languages free-text notes appear in on the catalog.
func New(provider fetcher.Provider, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.German).
		Build()
	return &Extractor{
		provider: provider,
		detector: detector,
		logger:   logger.With("component", "extract"),
	}
}

// Extract fetches and normalizes one listing.
// Attribute keys lose their trailing colon; empty attribute values are
// kept so completeness checks downstream can detect them.
func (e *Extractor) Extract(itemURL string) (models.Record, error) {
	sections, err := e.provider.FetchItemSections(itemURL)
	if err != nil {
		return models.Record{}, &ExtractionError{URL: itemURL, Err: err}
	}

	info := make(models.Fields, 0, len(sections.InfoRows))
	for _, row := range sections.InfoRows {
		key := strings.TrimSpace(strings.TrimRight(row[0], ":"))
		if key == "" {
			continue
		}
		info = append(info, models.Field{Key: key, Value: strings.TrimSpace(row[1])})
	}

	rec := models.Record{
		URL:         itemURL,
		Info:        info,
		DetailsList: sections.ExtraItems,
		DetailsText: sections.FreeText,
		Language:    e.detectLanguage(sections.FreeText),
	}
	return rec, nil
}

// detectLanguage tags the free text's language as a lowercase ISO 639-1
// code. The tag is an annotation only and never affects matching.
func (e *Extractor) detectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	lang, ok := e.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
