package simsource

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rshade/finwatch/internal/record"
)

var knownNames = map[record.Key]string{
	"AAPL":  "Apple Inc.",
	"MSFT":  "Microsoft Corporation",
	"GOOGL": "Alphabet Inc.",
	"AMZN":  "Amazon.com, Inc.",
	"NVDA":  "NVIDIA Corporation",
	"TSLA":  "Tesla, Inc.",
	"META":  "Meta Platforms, Inc.",
	"JPM":   "JPMorgan Chase & Co.",
	"V":     "Visa Inc.",
	"XOM":   "Exxon Mobil Corporation",
}

var sectors = []struct{ sector, industry string }{
	{"Technology", "Software"},
	{"Technology", "Semiconductors"},
	{"Financial Services", "Banks"},
	{"Healthcare", "Biotechnology"},
	{"Energy", "Oil & Gas"},
	{"Consumer Cyclical", "Retail"},
}

var recommendations = []string{"strong_buy", "buy", "hold", "sell"}

func buildRecord(key record.Key, q record.Quote) record.Record {
	h := hashKey(key)

	name, ok := knownNames[key]
	if !ok {
		name = fmt.Sprintf("%s Holdings", key)
	}
	sec := sectors[h%uint64(len(sectors))]

	shares := int64(h%9_000+1_000) * 1_000_000
	marketCap := q.Price.Mul(decimal.NewFromInt(shares))
	eps := decimal.New(int64(h%1_500)+50, -2)
	pe := q.Price.Div(eps).Round(2)
	beta := decimal.New(int64(h%150)+50, -2)
	target := q.Price.Mul(decimal.New(int64(h%30)+100, -2)).Round(2)

	var dividend *decimal.Decimal
	if h%3 != 0 {
		d := decimal.New(int64(h%400), -4)
		dividend = &d
	}

	statements := make([]record.FinancialStatement, 0, 4)
	revenue := decimal.NewFromInt(int64(h%50_000+5_000) * 1_000_000)
	for i := range 4 {
		year := 2025 - i
		rev := revenue.Mul(decimal.New(int64(100-i*6), -2)).Round(0)
		statements = append(statements, record.FinancialStatement{
			Period:            fmt.Sprintf("FY%d", year),
			Revenue:           rev,
			NetIncome:         rev.Mul(decimal.New(int64(h%20)+5, -2)).Round(0),
			OperatingCash:     rev.Mul(decimal.New(int64(h%25)+8, -2)).Round(0),
			TotalDebt:         rev.Mul(decimal.New(int64(h%60), -2)).Round(0),
			SharesOutstanding: shares,
			ReportedAt:        time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		})
	}

	return record.Record{
		Key:   key,
		Quote: q,
		Profile: record.Profile{
			Name:     name,
			Exchange: []string{"NASDAQ", "NYSE"}[h%2],
			Currency: "USD",
			Sector:   sec.sector,
			Industry: sec.industry,
			Summary:  fmt.Sprintf("%s operates in the %s industry.", name, sec.industry),
		},
		Fundamentals: record.Fundamentals{
			MarketCap:        marketCap.Round(0),
			PERatio:          &pe,
			EPS:              &eps,
			DividendYield:    dividend,
			Beta:             &beta,
			FiftyTwoWeekHigh: q.Price.Mul(decimal.New(125, -2)).Round(2),
			FiftyTwoWeekLow:  q.Price.Mul(decimal.New(75, -2)).Round(2),
		},
		Analysis: record.Analysis{
			Recommendation:  recommendations[h%uint64(len(recommendations))],
			TargetMeanPrice: &target,
			AnalystCount:    int(h%40) + 3,
		},
		Statements: statements,
	}
}
