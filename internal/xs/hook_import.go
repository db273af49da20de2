package xs

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"xsched/internal/model"
)

// ImportFormat names a hook import file format.
type ImportFormat string

const (
	FormatJSON ImportFormat = "json"
	FormatCSV  ImportFormat = "csv"
	FormatText ImportFormat = "txt"
)

// ParseImportFormat validates a format name. An empty name is resolved from
// the file extension of filename.
func ParseImportFormat(name, filename string) (ImportFormat, error) {
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	}
	switch ImportFormat(strings.ToLower(name)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatText, "text":
		return FormatText, nil
	}
	return "", kindError(ErrValidation, "unsupported import format %q (want json, csv or txt)", name)
}

// ImportRejection explains why one entry of a batch was not imported.
// Index is zero-based within the batch.
type ImportRejection struct {
	Index  int
	Reason string
}

// ImportReport is the outcome of a partial-success batch import.
type ImportReport struct {
	Imported []int64
	Rejected []ImportRejection
}

// hookRecord is one hook definition as written in JSON import files.
type hookRecord struct {
	PatternType        string             `json:"pattern_type"`
	Category           string             `json:"category"`
	CustomLabel        string             `json:"custom_label"`
	Name               string             `json:"name"`
	HookText           string             `json:"hook_text"`
	ExampleTweet       string             `json:"example_tweet"`
	Separator          string             `json:"separator"`
	StructureNotes     string             `json:"structure_notes"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
	MinViews           *float64           `json:"min_views"`
	AvgEngagementRate  *float64           `json:"avg_engagement_rate"`
	Tags               []string           `json:"tags"`
	UseCases           []string           `json:"use_cases"`
	TargetAudience     string             `json:"target_audience"`
	Source             string             `json:"source"`
}

// parsedEntry is either a valid template or the reason it was rejected.
type parsedEntry struct {
	hook   *model.HookTemplate
	reason string
}

func parseHookBatch(r io.Reader, format ImportFormat) ([]parsedEntry, error) {
	switch format {
	case FormatJSON:
		return parseJSONHooks(r)
	case FormatCSV:
		return parseCSVHooks(r)
	case FormatText:
		return parseTextHooks(r)
	}
	return nil, kindError(ErrValidation, "unsupported import format %q", format)
}

func parseJSONHooks(r io.Reader) ([]parsedEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}

	var raw []json.RawMessage
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Hooks []json.RawMessage `json:"hooks"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, kindError(ErrValidation, "parsing JSON import: %v", err)
		}
		raw = wrapper.Hooks
	} else if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, kindError(ErrValidation, "parsing JSON import: %v", err)
	}

	entries := make([]parsedEntry, len(raw))
	for i, msg := range raw {
		var rec hookRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			entries[i] = parsedEntry{reason: fmt.Sprintf("malformed entry: %v", err)}
			continue
		}
		entries[i] = rec.toTemplate("json_import")
	}
	return entries, nil
}

func (rec hookRecord) toTemplate(defaultSource string) parsedEntry {
	categoryName := rec.PatternType
	if categoryName == "" {
		categoryName = rec.Category
	}
	if strings.TrimSpace(categoryName) == "" {
		return parsedEntry{reason: "missing pattern category"}
	}
	category, err := model.ParseHookCategory(categoryName)
	if err != nil {
		return parsedEntry{reason: err.Error()}
	}
	if category.Kind == model.CategoryCustom && category.Label == "" {
		category.Label = strings.TrimSpace(rec.CustomLabel)
	}

	hookText := strings.TrimSpace(rec.HookText)
	if hookText == "" {
		return parsedEntry{reason: "missing hook text"}
	}

	metrics := make(map[string]float64, len(rec.PerformanceMetrics)+2)
	for k, v := range rec.PerformanceMetrics {
		metrics[k] = v
	}
	if rec.MinViews != nil {
		metrics["min_views"] = *rec.MinViews
	}
	var avgEngagement float64
	if rec.AvgEngagementRate != nil {
		metrics["engagement_rate"] = *rec.AvgEngagementRate
		avgEngagement = *rec.AvgEngagementRate
	}
	for k, v := range metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return parsedEntry{reason: fmt.Sprintf("performance metric %q is not a finite number", k)}
		}
		if v < 0 {
			return parsedEntry{reason: fmt.Sprintf("negative performance metric %q", k)}
		}
	}

	name := strings.TrimSpace(rec.Name)
	if name == "" {
		name = category.String() + " hook"
	}
	source := rec.Source
	if source == "" {
		source = defaultSource
	}
	notes := rec.StructureNotes
	if rec.TargetAudience != "" {
		notes = strings.TrimSpace(notes + "\nAudience: " + rec.TargetAudience)
	}

	return parsedEntry{hook: &model.HookTemplate{
		Category:           category,
		Name:               name,
		HookText:           hookText,
		ExampleTweet:       rec.ExampleTweet,
		Separator:          rec.Separator,
		StructureNotes:     notes,
		PerformanceMetrics: metrics,
		Tags:               mergeTags(rec.Tags, rec.UseCases),
		AvgEngagementRate:  avgEngagement,
		Source:             source,
	}}
}

func mergeTags(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var tags []string
	for _, list := range lists {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			key := strings.ToLower(t)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			tags = append(tags, t)
		}
	}
	return tags
}

// csvNumericColumns are copied into the performance metrics.
var csvNumericColumns = []string{"views", "likes", "reposts", "replies", "min_views", "engagement_rate"}

func parseCSVHooks(r io.Reader) ([]parsedEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, kindError(ErrValidation, "reading CSV header: %v", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	field := func(row []string, names ...string) string {
		for _, name := range names {
			if i, ok := columns[name]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
		}
		return ""
	}

	var entries []parsedEntry
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			entries = append(entries, parsedEntry{reason: fmt.Sprintf("malformed row: %v", parseErr.Err)})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV import: %w", err)
		}

		rec := hookRecord{
			PatternType:    field(row, "pattern_type", "category"),
			CustomLabel:    field(row, "custom_label"),
			Name:           field(row, "name"),
			HookText:       field(row, "hook_text"),
			ExampleTweet:   field(row, "example_tweet"),
			Separator:      field(row, "separator"),
			StructureNotes: field(row, "structure_notes"),
			TargetAudience: field(row, "target_audience"),
			Source:         field(row, "source"),
			Tags:           splitList(field(row, "tags")),
			UseCases:       splitList(field(row, "use_cases")),
		}

		var badNumber string
		for _, col := range csvNumericColumns {
			raw := field(row, col)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				badNumber = fmt.Sprintf("invalid number %q in column %s", raw, col)
				break
			}
			if col == "engagement_rate" {
				rec.AvgEngagementRate = &v
				continue
			}
			if rec.PerformanceMetrics == nil {
				rec.PerformanceMetrics = map[string]float64{}
			}
			rec.PerformanceMetrics[col] = v
		}
		if badNumber != "" {
			entries = append(entries, parsedEntry{reason: badNumber})
			continue
		}
		entries = append(entries, rec.toTemplate("csv_import"))
	}
	return entries, nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' })
}

// parseTextHooks reads a plain dump of example posts. Posts are separated by
// blank lines or by lines starting with an em dash or "---"; the first line
// of each post becomes the hook text.
func parseTextHooks(r io.Reader) ([]parsedEntry, error) {
	var (
		entries []parsedEntry
		current []string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		example := strings.Join(current, "\n")
		category := DetectCategory(example)
		entries = append(entries, parsedEntry{hook: &model.HookTemplate{
			Category:           category,
			Name:               category.String() + " hook",
			HookText:           current[0],
			ExampleTweet:       example,
			Tags:               ExtractTags(example),
			PerformanceMetrics: map[string]float64{},
			Source:             "text_import",
		}})
		current = nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "\u2014") || strings.HasPrefix(line, "---") {
			flush()
			continue
		}
		current = append(current, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading text import: %w", err)
	}
	flush()
	return entries, nil
}
