package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// TradeRecord is the flattened, export-ready form of one executed trade.
// Amounts are decimal strings in base units so every format round-trips
// without precision loss.
type TradeRecord struct {
	ID         string    `json:"id"`
	Pool       string    `json:"pool"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	AmountIn   string    `json:"amount_in"`
	AmountOut  string    `json:"amount_out"`
	Fee        string    `json:"fee"`
	Price      string    `json:"price"`
	SoldSupply string    `json:"sold_supply"`
	Timestamp  time.Time `json:"timestamp"`
}

// CSVHeaders returns the column order used by ToCSV.
func CSVHeaders() []string {
	return []string{"id", "pool", "action", "actor", "amount_in", "amount_out",
		"fee", "price", "sold_supply", "timestamp"}
}

// ToCSV renders the record in CSVHeaders order.
func (r *TradeRecord) ToCSV() []string {
	return []string{r.ID, r.Pool, r.Action, r.Actor, r.AmountIn, r.AmountOut,
		r.Fee, r.Price, r.SoldSupply, r.Timestamp.Format(time.RFC3339)}
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format       ExportFormat
	StartTime    time.Time
	EndTime      time.Time
	PoolFilter   string // Filter by pool address (lowercase hex)
	ActionFilter string // Filter by action (buy/sell)
	OutputDir    string
}

// TradeExporter handles trade export functionality
type TradeExporter struct {
	logger *zap.Logger
}

// NewTradeExporter creates a new trade exporter
func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeExporter{logger: logger}
}

// ExportTrades exports trades based on the provided options
func (te *TradeExporter) ExportTrades(trades []TradeRecord, options ExportOptions) (string, error) {
	filtered := te.filterTrades(trades, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	filename := te.generateFilename(options)
	outputPath := filepath.Join(options.OutputDir, filename)

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = te.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = te.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

// filterTrades applies filters to the trade list
func (te *TradeExporter) filterTrades(trades []TradeRecord, options ExportOptions) []TradeRecord {
	var filtered []TradeRecord
	for _, trade := range trades {
		if !options.StartTime.IsZero() && trade.Timestamp.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && trade.Timestamp.After(options.EndTime) {
			continue
		}
		if options.PoolFilter != "" && trade.Pool != options.PoolFilter {
			continue
		}
		if options.ActionFilter != "" && trade.Action != options.ActionFilter {
			continue
		}
		filtered = append(filtered, trade)
	}
	return filtered
}

// generateFilename creates a filename based on export options
func (te *TradeExporter) generateFilename(options ExportOptions) string {
	timestamp := time.Now().Format("20060102_150405")

	prefix := "trades_all"
	if options.ActionFilter != "" {
		prefix = fmt.Sprintf("trades_%s", options.ActionFilter)
	}
	if len(options.PoolFilter) >= 10 {
		prefix += "_" + options.PoolFilter[2:10]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

// exportToCSV exports trades to CSV format
func (te *TradeExporter) exportToCSV(trades []TradeRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, trade := range trades {
		if err := writer.Write(trade.ToCSV()); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}
	return nil
}

// exportToJSON exports trades to JSON format
func (te *TradeExporter) exportToJSON(trades []TradeRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time     `json:"export_time"`
		TradeCount int           `json:"trade_count"`
		Trades     []TradeRecord `json:"trades"`
		Summary    ExportSummary `json:"summary"`
	}{
		ExportTime: time.Now(),
		TradeCount: len(trades),
		Trades:     trades,
		Summary:    te.calculateSummary(trades),
	}
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary aggregates the exported trades.
type ExportSummary struct {
	TotalTrades  int    `json:"total_trades"`
	Buys         int    `json:"buys"`
	Sells        int    `json:"sells"`
	TotalBaseIn  string `json:"total_base_in"`
	TotalBaseOut string `json:"total_base_out"`
	TotalFees    string `json:"total_fees"`
}

// calculateSummary totals the trade list. Unparsable amounts count as zero;
// they were produced by this process so that only happens on corruption.
func (te *TradeExporter) calculateSummary(trades []TradeRecord) ExportSummary {
	summary := ExportSummary{TotalTrades: len(trades)}

	baseIn := new(big.Int)
	baseOut := new(big.Int)
	fees := new(big.Int)
	for _, trade := range trades {
		switch trade.Action {
		case "buy":
			summary.Buys++
			addAmount(baseIn, trade.AmountIn)
		case "sell":
			summary.Sells++
			addAmount(baseOut, trade.AmountOut)
		}
		addAmount(fees, trade.Fee)
	}
	summary.TotalBaseIn = baseIn.String()
	summary.TotalBaseOut = baseOut.String()
	summary.TotalFees = fees.String()
	return summary
}

func addAmount(total *big.Int, amount string) {
	if v, ok := new(big.Int).SetString(amount, 10); ok {
		total.Add(total, v)
	}
}
