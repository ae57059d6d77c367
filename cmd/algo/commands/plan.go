package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trobrock/trading-algo/internal/allocator"
	"github.com/trobrock/trading-algo/internal/contracts"
)

var (
	planHoldingsFile string
	planPricesFile   string
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run one allocator cycle offline",
	Long: `Seeds the allocator with the holdings file, offers every candidate in order
and prints the resulting buys.

Holdings file:
  cash: 1000
  total_value: 5000        # optional, defaults to cash + holdings at price
  cash_buffer: 0.05        # optional
  holdings: {T: 40, VZ: 25}
  candidates: [MO, T, PM]

Prices file: CSV with symbol,price columns.

Example:
  go run ./cmd/algo plan --holdings holdings.yaml --prices prices.csv`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVar(&planHoldingsFile, "holdings", "", "holdings YAML file (required)")
	planCmd.Flags().StringVar(&planPricesFile, "prices", "", "price CSV file (required)")
	planCmd.MarkFlagRequired("holdings")
	planCmd.MarkFlagRequired("prices")
}

// holdingsDoc is the holdings file
type holdingsDoc struct {
	Cash       float64          `yaml:"cash"`
	TotalValue float64          `yaml:"total_value"`
	CashBuffer *float64         `yaml:"cash_buffer"`
	Holdings   map[string]int64 `yaml:"holdings"`
	Candidates []string         `yaml:"candidates"`
}

// planResult is the outcome of one offline cycle
type planResult struct {
	TotalValue float64
	CashLeft   float64
	Current    allocator.Portfolio
	Target     allocator.Portfolio
	Plan       allocator.Plan
	Prices     map[string]float64
	Accepted   []string
	Rejected   []string
}

func runPlan(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(planHoldingsFile)
	if err != nil {
		return err
	}
	var doc holdingsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", planHoldingsFile, err)
	}

	f, err := os.Open(planPricesFile)
	if err != nil {
		return err
	}
	defer f.Close()
	prices, err := readPrices(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", planPricesFile, err)
	}

	result, err := buildPlan(doc, prices)
	if err != nil {
		return err
	}

	printPlan(cmd.OutOrStdout(), result)
	return nil
}

// readPrices parses a symbol,price CSV. A header row is skipped.
func readPrices(r io.Reader) (map[string]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	prices := make(map[string]float64)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		price, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid price %q", line, record[1])
		}
		prices[strings.ToUpper(record[0])] = price
	}
	return prices, nil
}

func buildPlan(doc holdingsDoc, prices map[string]float64) (*planResult, error) {
	if doc.Cash < 0 {
		return nil, fmt.Errorf("cash must not be negative, got %v", doc.Cash)
	}

	priceOf := func(symbol string) (float64, error) {
		p, ok := prices[symbol]
		if !ok {
			return 0, fmt.Errorf("%w: %s", contracts.ErrNoPrice, symbol)
		}
		return p, nil
	}

	total := doc.TotalValue
	if total == 0 {
		total = doc.Cash
		for symbol, qty := range doc.Holdings {
			if p, ok := prices[symbol]; ok && qty > 0 {
				total += float64(qty) * p
			}
		}
	}

	var opts []allocator.Option
	if doc.CashBuffer != nil {
		opts = append(opts, allocator.WithCashBuffer(*doc.CashBuffer))
	}
	alloc := allocator.New(total, doc.Cash, allocator.Portfolio(doc.Holdings), priceOf, opts...)

	result := &planResult{TotalValue: total, Prices: prices}
	for _, candidate := range doc.Candidates {
		if alloc.Add(candidate) {
			result.Accepted = append(result.Accepted, candidate)
		} else {
			result.Rejected = append(result.Rejected, candidate)
		}
	}

	result.CashLeft = alloc.Cash()
	result.Current = alloc.Current()
	result.Target = alloc.Target()
	result.Plan = alloc.Plan()
	return result, nil
}

func printPlan(w io.Writer, r *planResult) {
	printHeader(w, "Allocation plan")
	fmt.Fprintf(w, "  Total value : %s\n", formatMoney(r.TotalValue))
	fmt.Fprintf(w, "  Accepted    : %s\n", strings.Join(r.Accepted, ", "))
	fmt.Fprintf(w, "  Rejected    : %s\n\n", strings.Join(r.Rejected, ", "))

	table := newTable(w, "Symbol", "Held", "Target", "Buy", "Price", "Cost")
	var spent float64
	for _, symbol := range r.Target.Symbols() {
		buy := r.Plan[symbol]
		price := r.Prices[symbol]
		cost := float64(buy) * price
		spent += cost
		table.Append([]string{
			symbol,
			formatQty(r.Current[symbol]),
			formatQty(r.Target[symbol]),
			formatQty(buy),
			formatMoney(price),
			formatMoney(cost),
		})
	}
	table.SetFooter([]string{"", "", "", "", "Cash left", formatMoney(r.CashLeft)})
	table.Render()

	fmt.Fprintf(w, "\nSpent %s\n", formatMoney(spent))
}
