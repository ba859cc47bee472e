package seed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"freetoair/catalog/internal/catalog"
	"freetoair/catalog/internal/models"
)

// Defaults returns the built-in sample channels applied at bootstrap.
// The set is small on purpose; real catalogs arrive via the CSV import
// or the create endpoint.
func Defaults() []models.Channel {
	return []models.Channel{
		{
			ID:        "bbc_world",
			Name:      "BBC World News",
			Country:   "UK",
			Language:  "English",
			Category:  "News",
			StreamURL: "https://example.com/streams/bbc-world.m3u8",
			IsActive:  true,
		},
		{
			ID:        "france_24",
			Name:      "France 24",
			Country:   "France",
			Language:  "French",
			Category:  "News",
			StreamURL: "https://example.com/streams/france-24.m3u8",
			IsActive:  true,
		},
		{
			ID:        "dw_news",
			Name:      "DW News",
			Country:   "Germany",
			Language:  "German",
			Category:  "News",
			StreamURL: "https://example.com/streams/dw-news.m3u8",
			IsActive:  true,
		},
	}
}

// Seeder loads channels into the catalog idempotently: ids that already
// exist are left untouched, so reruns never duplicate or alter records.
type Seeder struct {
	store catalog.ChannelStore
}

// NewSeeder creates a new channel seeder
func NewSeeder(store catalog.ChannelStore) *Seeder {
	return &Seeder{store: store}
}

// Apply inserts the given channels, skipping ids that already exist.
// It returns how many channels were actually added.
func (s *Seeder) Apply(ctx context.Context, channels []models.Channel) (int, error) {
	added := 0
	for _, ch := range channels {
		if err := ch.Validate(); err != nil {
			log.Warn().Err(err).Str("channel_id", ch.ID).Msg("Skipping invalid seed channel")
			continue
		}

		now := time.Now()
		if ch.CreatedAt.IsZero() {
			ch.CreatedAt = now
		}
		if ch.UpdatedAt.IsZero() {
			ch.UpdatedAt = now
		}

		created, err := s.store.InsertIfAbsent(ctx, &ch)
		if err != nil {
			return added, fmt.Errorf("failed to seed channel %q: %w", ch.ID, err)
		}
		if created {
			added++
			log.Debug().Str("channel_id", ch.ID).Msg("Seed channel inserted")
		} else {
			log.Debug().Str("channel_id", ch.ID).Msg("Seed channel already present, skipping")
		}
	}
	return added, nil
}

// ImportCSV imports channels from a CSV file with the columns
// id,name,country,language,category,stream_url. Rows whose id already
// exists are skipped, so importing the same file twice is harmless.
func (s *Seeder) ImportCSV(ctx context.Context, csvPath string) error {
	log.Info().Str("csv", csvPath).Msg("Starting channel import")

	file, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	if err := s.parseAndImport(ctx, file); err != nil {
		return fmt.Errorf("failed to import channels: %w", err)
	}

	log.Info().Msg("Import completed successfully")
	return nil
}

func (s *Seeder) parseAndImport(ctx context.Context, csvData io.Reader) error {
	reader := csv.NewReader(csvData)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return err
	}

	log.Debug().Strs("header", header).Msg("CSV header read")

	expectedColumns := map[string]bool{
		"id": false, "name": false, "country": false,
		"language": false, "category": false, "stream_url": false,
	}

	for _, column := range header {
		column = strings.ToLower(column)
		if _, exists := expectedColumns[column]; exists {
			expectedColumns[column] = true
		}
	}

	for column, found := range expectedColumns {
		if !found {
			return fmt.Errorf("required column '%s' not found in CSV header", column)
		}
	}

	idIdx := findColumnIndex(header, "id")
	nameIdx := findColumnIndex(header, "name")
	countryIdx := findColumnIndex(header, "country")
	languageIdx := findColumnIndex(header, "language")
	categoryIdx := findColumnIndex(header, "category")
	urlIdx := findColumnIndex(header, "stream_url")

	lineCount := 1 // Header was already read
	addedCount := 0
	duplicateCount := 0
	var importErrors []string

	for {
		lineCount++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Int("line", lineCount).Msg("Error reading CSV line")
			importErrors = append(importErrors, fmt.Sprintf("line %d: %v", lineCount, err))
			continue
		}

		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			log.Debug().Int("line", lineCount).Msg("Skipping empty row")
			continue
		}

		ch := models.NewChannel()
		ch.ID = safeGetValue(record, idIdx)
		ch.Name = safeGetValue(record, nameIdx)
		ch.Country = safeGetValue(record, countryIdx)
		ch.Language = safeGetValue(record, languageIdx)
		ch.Category = safeGetValue(record, categoryIdx)
		ch.StreamURL = safeGetValue(record, urlIdx)

		if err := ch.Validate(); err != nil {
			log.Warn().Err(err).Int("line", lineCount).Str("channel_id", ch.ID).Msg("Skipping invalid row")
			importErrors = append(importErrors, fmt.Sprintf("line %d: %v", lineCount, err))
			continue
		}

		logger := log.With().
			Int("line", lineCount).
			Str("channel_id", ch.ID).
			Str("country", ch.Country).
			Logger()

		created, err := s.store.InsertIfAbsent(ctx, ch)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to insert channel")
			importErrors = append(importErrors, fmt.Sprintf("line %d: %v", lineCount, err))
			continue
		}

		if !created {
			logger.Debug().Msg("Duplicate channel id, keeping existing record")
			duplicateCount++
			continue
		}

		addedCount++
		logger.Debug().Msg("Channel inserted successfully")
	}

	log.Info().
		Int("total", lineCount-1).
		Int("added", addedCount).
		Int("duplicates", duplicateCount).
		Int("errors", len(importErrors)).
		Msg("Import summary")

	fmt.Printf("Imported %d channels successfully (%d already present)\n", addedCount, duplicateCount)
	if len(importErrors) > 0 {
		fmt.Printf("Encountered %d errors:\n", len(importErrors))
		for _, e := range importErrors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return nil
}

func findColumnIndex(header []string, columnName string) int {
	for i, col := range header {
		if strings.EqualFold(col, columnName) {
			return i
		}
	}
	return -1
}

// safeGetValue returns the trimmed value at the given index, or an empty
// string when the index is out of bounds.
func safeGetValue(record []string, index int) string {
	if index >= 0 && index < len(record) {
		return strings.TrimSpace(record[index])
	}
	return ""
}
