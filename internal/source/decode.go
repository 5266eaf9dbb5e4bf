package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/PaesslerAG/jsonpath"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
)

func (c *Client) decode(body []byte) (Batch, error) {
	return Decode(body, c.cfg.EnvelopePath)
}

// ReadFile decodes a provider export saved to disk.
func ReadFile(path, envelopePath string) (Batch, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(body, envelopePath)
}

// Decode accepts a bare JSON array or an object wrapping one. Elements that
// are not objects, or that cannot be read as a fund record, are skipped with
// a warning. An empty envelopePath tries the common wrapper keys.
func Decode(body []byte, envelopePath string) (Batch, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Batch{}, fmt.Errorf("%w: empty body", ErrUnsupportedPayload)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrUnsupportedPayload, err)
	}

	items, err := locate(doc, envelopePath)
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{Records: make([]domain.FundRecord, 0, len(items))}
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			batch.Skipped++
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("record #%d skipped: not an object", i))
			continue
		}
		raw, err := json.Marshal(obj)
		if err != nil {
			batch.Skipped++
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("record #%d skipped: %v", i, err))
			continue
		}
		var rec domain.FundRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			batch.Skipped++
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("record #%d skipped: %v", i, err))
			continue
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

func locate(doc any, envelopePath string) ([]any, error) {
	if items, ok := doc.([]any); ok {
		return items, nil
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: expected array or object", ErrUnsupportedPayload)
	}

	paths := envelopePaths
	if envelopePath != "" {
		paths = []string{envelopePath}
	}
	for _, path := range paths {
		value, err := jsonpath.Get(path, doc)
		if err != nil {
			continue
		}
		if items, ok := value.([]any); ok {
			return items, nil
		}
	}
	return nil, fmt.Errorf("%w: no record array at %v", ErrUnsupportedPayload, paths)
}
