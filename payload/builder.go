package payload

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/models"
)

type Config struct {
	RecordPrefix    string
	MinRecords      int
	MaxRecords      int
	MaxResourceSize int64
	Template        Template
}

// Builder turns resource references into batch records.
type Builder struct {
	config Config
}

func NewBuilder(cfg Config) *Builder {
	if cfg.RecordPrefix == "" {
		cfg.RecordPrefix = "batch"
	}
	return &Builder{config: cfg}
}

func (b *Builder) RecordID(index int) string {
	return fmt.Sprintf("%s-%d", b.config.RecordPrefix, index)
}

// Check applies the pre-submission business rules without building anything.
func (b *Builder) Check(refs []models.ResourceRef) error {
	const op = "Builder.Check"

	if len(refs) == 0 || len(refs) < b.config.MinRecords {
		return errors.BusinessRule(op, errors.ErrBelowMinimum,
			fmt.Sprintf("found %d resources, the batch service requires at least %d", len(refs), b.config.MinRecords))
	}
	if b.config.MaxRecords > 0 && len(refs) > b.config.MaxRecords {
		return errors.BusinessRule(op, errors.ErrAboveMaximum,
			fmt.Sprintf("found %d resources, the batch service accepts at most %d", len(refs), b.config.MaxRecords))
	}

	var oversized, unsupported []string
	for _, ref := range refs {
		if b.config.MaxResourceSize > 0 && ref.Size > b.config.MaxResourceSize {
			oversized = append(oversized, fmt.Sprintf("%s (%d bytes)", ref.URI(), ref.Size))
		}
		if _, ok := b.config.Template.MediaFormat(ref.Key); !ok {
			unsupported = append(unsupported, ref.URI())
		}
	}
	if len(oversized) > 0 {
		return errors.BusinessRule(op, errors.ErrOversized,
			fmt.Sprintf("%d resources exceed %d bytes: %s", len(oversized), b.config.MaxResourceSize, strings.Join(oversized, ", ")))
	}
	if len(unsupported) > 0 {
		return errors.BusinessRule(op, errors.ErrUnsupported,
			fmt.Sprintf("%d resources have no supported video format: %s", len(unsupported), strings.Join(unsupported, ", ")))
	}

	return nil
}

// Build emits one record per ref in input order, with ids <prefix>-<index>.
func (b *Builder) Build(refs []models.ResourceRef) ([]models.Record, error) {
	const op = "Builder.Build"

	if err := b.Check(refs); err != nil {
		return nil, err
	}

	records := make([]models.Record, 0, len(refs))
	for i, ref := range refs {
		format, _ := b.config.Template.MediaFormat(ref.Key)

		input, err := json.Marshal(b.config.Template.input(ref.URI(), format))
		if err != nil {
			return nil, errors.Internal(op, err, "failed to marshal model input")
		}

		records = append(records, models.Record{
			ID:    b.RecordID(i),
			Input: input,
		})
	}

	return records, nil
}

// ResourceURI recovers the media location embedded in a record's input.
func ResourceURI(rec models.Record) string {
	var in modelInput
	if err := json.Unmarshal(rec.Input, &in); err != nil {
		return ""
	}
	for _, msg := range in.Messages {
		for _, c := range msg.Content {
			if c.Video != nil {
				return c.Video.Source.S3Location.URI
			}
		}
	}
	return ""
}
