package store

import (
	"encoding/json"
	"fmt"

	"github.com/ppiankov/bsdetector/internal/model"
)

// encoded holds the JSON columns of a record. A nil field is SQL NULL.
type encoded struct {
	events       []byte
	report       []byte
	replacements []byte
}

func encodeRecord(rec *model.InvestigationRecord) (encoded, error) {
	var out encoded
	var err error

	events := rec.Events
	if events == nil {
		events = []model.AgentEvent{}
	}
	if out.events, err = json.Marshal(events); err != nil {
		return out, fmt.Errorf("encode events: %w", err)
	}
	if rec.Report != nil {
		if out.report, err = json.Marshal(rec.Report); err != nil {
			return out, fmt.Errorf("encode report: %w", err)
		}
	}
	if rec.Replacements != nil {
		if out.replacements, err = encodeAnnotations(rec.Replacements); err != nil {
			return out, err
		}
	}
	return out, nil
}

func encodeAnnotations(anns []model.Annotation) ([]byte, error) {
	if anns == nil {
		anns = []model.Annotation{}
	}
	b, err := json.Marshal(anns)
	if err != nil {
		return nil, fmt.Errorf("encode replacements: %w", err)
	}
	return b, nil
}

// decodeInto fills the JSON-backed fields of rec
func decodeInto(rec *model.InvestigationRecord, enc encoded) error {
	rec.Events = []model.AgentEvent{}
	if len(enc.events) > 0 {
		if err := json.Unmarshal(enc.events, &rec.Events); err != nil {
			return fmt.Errorf("decode events: %w", err)
		}
	}
	if len(enc.report) > 0 {
		var rep model.StructuredReport
		if err := json.Unmarshal(enc.report, &rep); err != nil {
			return fmt.Errorf("decode report: %w", err)
		}
		rec.Report = &rep
	}
	if enc.replacements != nil {
		rec.Replacements = []model.Annotation{}
		if err := json.Unmarshal(enc.replacements, &rec.Replacements); err != nil {
			return fmt.Errorf("decode replacements: %w", err)
		}
	}
	return nil
}
