package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/codegen"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

func doExport(ctx context.Context, store ports.MappingStore, w io.Writer) error {
	mappings, err := store.Dump(ctx)
	if err != nil {
		return err
	}
	if mappings == nil {
		mappings = []domain.Mapping{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(mappings)
}

// doImport keeps every field of the exported records, click counts and
// deactivation included. Codes already present are left untouched. Records
// that could never resolve are rejected; all per-record failures are
// returned together after the remaining records are imported.
func doImport(ctx context.Context, store ports.MappingStore, log logrus.FieldLogger, mappings []domain.Mapping) (int, error) {
	var (
		count int
		errs  []error
	)
	for i := range mappings {
		m := &mappings[i]

		if err := validateRecord(m); err != nil {
			log.WithError(err).WithField("short_code", m.ShortCode).Warn("rejected record")
			errs = append(errs, errors.Wrapf(err, "record %d", i))
			continue
		}

		exists, err := store.Exists(ctx, m.ShortCode)
		if err != nil {
			return count, errors.Wrapf(err, "check %q", m.ShortCode)
		}
		if exists {
			log.WithField("short_code", m.ShortCode).Info("skipping existing code")
			continue
		}

		// Create is still the authority if another writer got there first.
		err = store.Create(ctx, m)
		switch {
		case err == nil:
			count++
		case errors.Is(err, domain.ErrAlreadyExists):
			log.WithField("short_code", m.ShortCode).Info("skipping existing code")
		default:
			log.WithError(err).WithField("short_code", m.ShortCode).Warn("failed to import")
			errs = append(errs, errors.Wrapf(err, "import %q", m.ShortCode))
		}
	}
	return count, multierr.Combine(errs...)
}

func validateRecord(m *domain.Mapping) error {
	switch {
	case !codegen.IsPlausibleCode(m.ShortCode):
		return errors.Errorf("invalid short code %q", m.ShortCode)
	case !codegen.ValidateURL(m.OriginalURL):
		return errors.Errorf("invalid url %q for %q", m.OriginalURL, m.ShortCode)
	case m.CreatedAt.IsZero():
		return errors.Errorf("missing created_at for %q", m.ShortCode)
	case m.ClickCount < 0:
		return errors.Errorf("negative click_count for %q", m.ShortCode)
	}
	return nil
}
