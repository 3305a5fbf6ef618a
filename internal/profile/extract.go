package profile

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadqual/internal/model"
)

// Extract reconstructs a normalized ProfileRecord from raw profile
// page HTML. The structured-metadata pass builds the base record (or a
// minimal shell when no metadata block exists); the HTML fallback pass
// then fills every field the base left empty. The returned record is
// final: it is never mutated after being handed back.
func Extract(htmlContent, sourceURL string) (*model.ProfileRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, eris.Wrap(err, "profile: parse html")
	}

	log := zap.L().With(zap.String("url", sourceURL))

	rec, ok := extractStructured(doc, sourceURL)
	if ok {
		log.Debug("profile: structured metadata block found")
	} else {
		log.Debug("profile: no structured metadata, building shell record")
		rec = model.NewProfileRecord(sourceURL)
	}

	supplement(doc, rec)
	rec.CapturedAt = time.Now().UTC()

	log.Info("profile: extracted",
		zap.String("name", rec.DisplayName),
		zap.String("employer", rec.CurrentEmployer),
		zap.Int("experience", len(rec.Experience)),
		zap.Int("education", len(rec.Education)),
		zap.Bool("structured", ok),
	)
	return rec, nil
}
