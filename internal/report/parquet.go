package report

import (
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/Rajchodisetti/alertbot/internal/pnl"
)

// PnLRow is the Parquet schema for one PnL record.
type PnLRow struct {
	Version     string  `parquet:"version"`
	Ticker      string  `parquet:"ticker"`
	Kind        string  `parquet:"pnl_type"`
	PriceBought float64 `parquet:"price_bought"`
	PriceSold   float64 `parquet:"price_sold"`
	PctChange   float64 `parquet:"price_chg_pct"`
	Quantity    int64   `parquet:"qty"`
	Amount      float64 `parquet:"amount"`
	TimeBought  int64   `parquet:"time_bought,timestamp(millisecond)"` // Unix ms
	TimeSold    int64   `parquet:"time_sold,timestamp(millisecond)"`   // Unix ms
	BuyOrigin   string  `parquet:"buy_origin"`
	SellOrigin  string  `parquet:"sell_origin"`
}

func toRow(r pnl.Record) PnLRow {
	bought, _ := r.PriceBought.Float64()
	sold, _ := r.PriceSold.Float64()
	pct, _ := r.PctChange.Float64()
	amount, _ := r.Amount().Float64()
	return PnLRow{
		Version:     r.Version,
		Ticker:      r.Ticker,
		Kind:        string(r.Kind),
		PriceBought: bought,
		PriceSold:   sold,
		PctChange:   pct,
		Quantity:    int64(r.Quantity),
		Amount:      amount,
		TimeBought:  r.TimeBought.UnixMilli(),
		TimeSold:    r.TimeSold.UnixMilli(),
		BuyOrigin:   r.BuyOrigin,
		SellOrigin:  r.SellOrigin,
	}
}

// WritePnL writes records to a Parquet file at path, replacing it.
func WritePnL(path string, records []pnl.Record) error {
	rows := make([]PnLRow, len(records))
	for i, r := range records {
		rows[i] = toRow(r)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, rows)
}

func ReadPnL(path string) ([]PnLRow, error) {
	return parquet.ReadFile[PnLRow](path)
}
