// Package catalog loads reference data (accounts, clients, talents and offres)
// from a JSON document. Catalog management itself lives outside the pipeline;
// imports seed local environments and demo databases.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/schemas"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
	"go.uber.org/zap"
)

// Document is the import payload.
type Document struct {
	Users   []types.User   `json:"users"`
	Clients []types.Client `json:"clients"`
	Talents []types.Talent `json:"talents"`
	Offres  []Offre        `json:"offres"`
}

// Offre is an offre entry, referencing its client by public id.
type Offre struct {
	types.Offre
	ClientUID *uuid.UUID `json:"clientUid,omitempty"`
}

// Report counts the imported rows.
type Report struct {
	Users   int `json:"users"`
	Clients int `json:"clients"`
	Talents int `json:"talents"`
	Offres  int `json:"offres"`
}

// Importer writes documents to a store.
type Importer struct {
	store store.Store
	log   *zap.Logger
}

// NewImporter creates an Importer.
func NewImporter(st store.Store, log *zap.Logger) *Importer {
	return &Importer{store: st, log: log}
}

// Import validates raw against the import schema and writes every entry in one
// unit of work. Nothing is written when any entry fails.
func (im *Importer) Import(ctx context.Context, raw []byte) (*Report, error) {
	if err := schemas.Validate(schemas.Import, raw); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) && len(ve.Errors) > 0 {
			return nil, apperr.Validation(ve.Errors[0].Field, "%s", ve.Errors[0].Message)
		}
		return nil, fmt.Errorf("failed to validate import document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Validation("", "malformed import document: %v", err)
	}

	report := &Report{}
	err := im.store.InTx(ctx, func(tx store.Tx) error {
		for i := range doc.Users {
			if err := tx.CreateUser(ctx, &doc.Users[i]); err != nil {
				return entryError("users", i, err)
			}
			report.Users++
		}
		for i := range doc.Clients {
			if err := tx.CreateClient(ctx, &doc.Clients[i]); err != nil {
				return entryError("clients", i, err)
			}
			report.Clients++
		}
		for i := range doc.Talents {
			t := &doc.Talents[i]
			if t.Availability == "" {
				t.Availability = types.AvailableImmediate
			}
			if err := tx.CreateTalent(ctx, t); err != nil {
				return entryError("talents", i, err)
			}
			report.Talents++
		}
		for i := range doc.Offres {
			o := &doc.Offres[i]
			o.NbCandidatures = 0
			if o.ClientUID != nil {
				c, err := tx.GetClient(ctx, *o.ClientUID)
				if err != nil {
					return fmt.Errorf("failed to load client: %w", err)
				}
				if c == nil {
					return apperr.Validation(fmt.Sprintf("offres[%d].clientUid", i), "unknown client %s", *o.ClientUID)
				}
				o.ClientID = &c.ID
			}
			if err := tx.CreateOffre(ctx, &o.Offre); err != nil {
				return entryError("offres", i, err)
			}
			report.Offres++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	im.log.Info("catalog imported",
		zap.Int("users", report.Users),
		zap.Int("clients", report.Clients),
		zap.Int("talents", report.Talents),
		zap.Int("offres", report.Offres),
	)
	return report, nil
}

func entryError(section string, i int, err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return apperr.Conflict("%s[%d] already exists", section, i)
	}
	return fmt.Errorf("failed to import %s[%d]: %w", section, i, err)
}
