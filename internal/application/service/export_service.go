package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

// DocumentVersion is the current export document version
const DocumentVersion = 1

// Format is the encoding of an export document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
	}
}

// Document is one journey together with the journals it references
type Document struct {
	Version    int               `json:"version" yaml:"version"`
	ExportedAt time.Time         `json:"exportedAt" yaml:"exportedAt"`
	Journey    journey.Journey   `json:"journey" yaml:"journey"`
	Journals   []journal.Journal `json:"journals" yaml:"journals"`
}

// Encode writes the document in the given format
func (d *Document) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(data, '\n'), nil
	}
}

// DecodeDocument parses an export document
func DecodeDocument(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s document: %w", format, err)
	}
	if doc.Version == 0 || doc.Version > DocumentVersion {
		return nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}
	return &doc, nil
}

// ExportService exports journeys to documents, imports them back as copies
// and keeps snapshot backups of them.
type ExportService struct {
	journeys *JourneyService
	journals *JournalService
	tx       output.TransactionManager
	backups  output.BackupGateway
	clock    Clock
	logger   *zap.Logger
}

// NewExportService creates an export service. backups may be nil when
// snapshot backups are not configured.
func NewExportService(
	journeys *JourneyService,
	journals *JournalService,
	tx output.TransactionManager,
	backups output.BackupGateway,
	clock Clock,
	logger *zap.Logger,
) *ExportService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		journeys: journeys,
		journals: journals,
		tx:       tx,
		backups:  backups,
		clock:    clock,
		logger:   logger,
	}
}

// ErrBackupsDisabled is returned by backup operations without a gateway
var ErrBackupsDisabled = errors.New("snapshot backups are not configured")

// Export builds the document of a journey. Journals it references but that
// no longer exist locally are left out.
func (s *ExportService) Export(ctx context.Context, journeyID string) (*Document, error) {
	rec, err := s.journeys.Get(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("export journey %s: %w", journeyID, err)
	}
	doc := &Document{
		Version:    DocumentVersion,
		ExportedAt: model.Timestamp(s.clock.Now()),
		Journey:    rec.Journey.Clone(),
		Journals:   []journal.Journal{},
	}
	for _, ref := range rec.JournalRefs() {
		jr, err := s.journals.Get(ctx, ref)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("export journal %s: %w", ref, err)
		}
		doc.Journals = append(doc.Journals, jr.Journal)
	}
	return doc, nil
}

// Import stores the document as a new journey owned by ownerID. Every ID is
// replaced, so importing the same document twice yields two journeys.
func (s *ExportService) Import(ctx context.Context, doc *Document, ownerID string) (*journey.Record, error) {
	if doc == nil {
		return nil, errors.New("import: nil document")
	}
	var out *journey.Record
	err := s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		mapping := make(map[string]string, len(doc.Journals))
		for _, j := range doc.Journals {
			cp := j
			cp.ID = ""
			cp.OwnerID = ownerID
			cp.CreatedAt, cp.UpdatedAt = time.Time{}, time.Time{}
			rec, err := s.journals.Create(txCtx, cp)
			if err != nil {
				return err
			}
			mapping[j.ID] = rec.ID
		}

		dst, _ := journey.Duplicate(doc.Journey)
		// references to journals missing from the document are cleared
		journey.RemapJournals(&dst, mapping)
		dst.OwnerID = ownerID

		rec, err := s.journeys.Create(txCtx, dst)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import journey failed: %w", err)
	}
	s.logger.Info("journey imported",
		zap.String("source_id", doc.Journey.ID),
		zap.String("id", out.ID),
		zap.Int("journals", len(doc.Journals)))
	return out, nil
}

// CreateBackup stores a snapshot of the journey's export document
func (s *ExportService) CreateBackup(ctx context.Context, journeyID string, format Format) (*output.SnapshotMetadata, error) {
	if s.backups == nil {
		return nil, ErrBackupsDisabled
	}
	doc, err := s.Export(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	content, err := doc.Encode(format)
	if err != nil {
		return nil, err
	}
	meta, err := s.backups.SaveSnapshot(ctx, output.SaveSnapshotRequest{
		JourneyID: journeyID,
		Format:    string(format),
		Content:   content,
		Metadata: map[string]string{
			"name":      doc.Journey.Name,
			"updatedAt": doc.Journey.UpdatedAt.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Info("backup created", zap.String("journey_id", journeyID), zap.String("snapshot_id", meta.ID))
	return meta, nil
}

// ListBackups lists snapshots of a journey, or of every journey when journeyID is empty
func (s *ExportService) ListBackups(ctx context.Context, journeyID string) ([]*output.SnapshotMetadata, error) {
	if s.backups == nil {
		return nil, ErrBackupsDisabled
	}
	return s.backups.ListSnapshots(ctx, journeyID)
}

// RestoreBackup imports a snapshot as a new journey owned by ownerID
func (s *ExportService) RestoreBackup(ctx context.Context, snapshotID, ownerID string) (*journey.Record, error) {
	if s.backups == nil {
		return nil, ErrBackupsDisabled
	}
	snap, err := s.backups.LoadSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	format, err := ParseFormat(snap.Metadata.Format)
	if err != nil {
		return nil, err
	}
	doc, err := DecodeDocument(snap.Content, format)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, doc, ownerID)
}
