package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

// Seed file names looked for in the seed directory.
const (
	seedCompaniesFile   = "companies.yaml"
	seedComparablesFile = "comparables.yaml"
	seedIndicesFile     = "indices.yaml"
)

const seedDateLayout = "2006-01-02"

// Seed YAML carries decimals and dates as strings; these DTOs parse them
// explicitly so a bad fixture fails with a field-level error instead of a
// YAML type mismatch.
type seedCompany struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Sector     string `yaml:"sector"`
	Stage      string `yaml:"stage"`
	Founded    string `yaml:"founded_date"`
	Financials struct {
		RevenueTTM       string `yaml:"revenue_ttm"`
		RevenueGrowthYoY string `yaml:"revenue_growth_yoy"`
		GrossMargin      string `yaml:"gross_margin"`
		BurnRate         string `yaml:"burn_rate"`
		RunwayMonths     *int   `yaml:"runway_months"`
	} `yaml:"financials"`
	LastRound *struct {
		Date          string `yaml:"date"`
		ValuationPre  string `yaml:"valuation_pre"`
		ValuationPost string `yaml:"valuation_post"`
		AmountRaised  string `yaml:"amount_raised"`
		LeadInvestor  string `yaml:"lead_investor"`
	} `yaml:"last_round"`
	Adjustments []struct {
		Name   string `yaml:"name"`
		Factor string `yaml:"factor"`
		Reason string `yaml:"reason"`
	} `yaml:"adjustments"`
}

type seedComparableSet struct {
	Sector    string     `yaml:"sector"`
	AsOfDate  string     `yaml:"as_of_date"`
	Source    seedSource `yaml:"source"`
	Companies []struct {
		Ticker            string `yaml:"ticker"`
		Name              string `yaml:"name"`
		RevenueTTM        string `yaml:"revenue_ttm"`
		MarketCap         string `yaml:"market_cap"`
		EVRevenueMultiple string `yaml:"ev_revenue_multiple"`
		RevenueGrowthYoY  string `yaml:"revenue_growth_yoy"`
	} `yaml:"companies"`
}

type seedIndex struct {
	Name   string     `yaml:"name"`
	Source seedSource `yaml:"source"`
	Points []struct {
		Date  string `yaml:"date"`
		Value string `yaml:"value"`
	} `yaml:"points"`
}

type seedSource struct {
	Name        string `yaml:"name"`
	RetrievedAt string `yaml:"retrieved_at"`
}

// SeedFromDir loads YAML fixtures from dir and upserts them. Missing files
// are skipped; company data that fails validation aborts the seed.
func SeedFromDir(ctx context.Context, st Store, dir string) error {
	if err := seedCompanies(ctx, st, filepath.Join(dir, seedCompaniesFile)); err != nil {
		return err
	}
	if err := seedComparables(ctx, st, filepath.Join(dir, seedComparablesFile)); err != nil {
		return err
	}
	return seedIndices(ctx, st, filepath.Join(dir, seedIndicesFile))
}

func seedCompanies(ctx context.Context, st Store, path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		zap.L().Debug("seed: file missing, skipping", zap.String("path", path))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "seed: read %s", path)
	}

	var entries []seedCompany
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return eris.Wrapf(err, "seed: parse %s", path)
	}

	for _, entry := range entries {
		data, err := entry.toModel()
		if err != nil {
			return eris.Wrapf(err, "seed: company %s", entry.ID)
		}
		if err := data.Validate(); err != nil {
			return eris.Wrapf(err, "seed: company %s", entry.ID)
		}
		if err := st.UpsertCompany(ctx, data); err != nil {
			return err
		}
	}

	zap.L().Info("seed: companies loaded", zap.Int("count", len(entries)))
	return nil
}

func seedComparables(ctx context.Context, st Store, path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		zap.L().Debug("seed: file missing, skipping", zap.String("path", path))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "seed: read %s", path)
	}

	var entries []seedComparableSet
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return eris.Wrapf(err, "seed: parse %s", path)
	}

	for _, entry := range entries {
		set, err := entry.toModel()
		if err != nil {
			return eris.Wrapf(err, "seed: comparables %s", entry.Sector)
		}
		if err := st.UpsertComparableSet(ctx, set); err != nil {
			return err
		}
	}

	zap.L().Info("seed: comparable sets loaded", zap.Int("count", len(entries)))
	return nil
}

func seedIndices(ctx context.Context, st Store, path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		zap.L().Debug("seed: file missing, skipping", zap.String("path", path))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "seed: read %s", path)
	}

	var entries []seedIndex
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return eris.Wrapf(err, "seed: parse %s", path)
	}

	for _, entry := range entries {
		source, points, err := entry.toModel()
		if err != nil {
			return eris.Wrapf(err, "seed: index %s", entry.Name)
		}
		if err := st.UpsertIndex(ctx, entry.Name, source, points); err != nil {
			return err
		}
	}

	zap.L().Info("seed: indices loaded", zap.Int("count", len(entries)))
	return nil
}

func (c seedCompany) toModel() (model.CompanyData, error) {
	data := model.CompanyData{
		Company: model.Company{
			ID:     c.ID,
			Name:   c.Name,
			Sector: c.Sector,
			Stage:  model.Stage(c.Stage),
		},
	}

	if c.Founded != "" {
		d, err := time.Parse(seedDateLayout, c.Founded)
		if err != nil {
			return model.CompanyData{}, eris.Wrap(err, "founded_date")
		}
		data.Company.FoundedDate = &d
	}

	var err error
	if data.Financials.RevenueTTM, err = optionalDecimal(c.Financials.RevenueTTM, "revenue_ttm"); err != nil {
		return model.CompanyData{}, err
	}
	if data.Financials.RevenueGrowthYoY, err = optionalDecimal(c.Financials.RevenueGrowthYoY, "revenue_growth_yoy"); err != nil {
		return model.CompanyData{}, err
	}
	if data.Financials.GrossMargin, err = optionalDecimal(c.Financials.GrossMargin, "gross_margin"); err != nil {
		return model.CompanyData{}, err
	}
	if data.Financials.BurnRate, err = optionalDecimal(c.Financials.BurnRate, "burn_rate"); err != nil {
		return model.CompanyData{}, err
	}
	data.Financials.RunwayMonths = c.Financials.RunwayMonths

	if c.LastRound != nil {
		date, err := time.Parse(seedDateLayout, c.LastRound.Date)
		if err != nil {
			return model.CompanyData{}, eris.Wrap(err, "last_round.date")
		}
		pre, err := requiredDecimal(c.LastRound.ValuationPre, "last_round.valuation_pre")
		if err != nil {
			return model.CompanyData{}, err
		}
		post, err := requiredDecimal(c.LastRound.ValuationPost, "last_round.valuation_post")
		if err != nil {
			return model.CompanyData{}, err
		}
		raised, err := requiredDecimal(c.LastRound.AmountRaised, "last_round.amount_raised")
		if err != nil {
			return model.CompanyData{}, err
		}
		data.LastRound = &model.LastRound{
			Date:          date,
			ValuationPre:  pre,
			ValuationPost: post,
			AmountRaised:  raised,
			LeadInvestor:  c.LastRound.LeadInvestor,
		}
	}

	for _, adj := range c.Adjustments {
		factor, err := requiredDecimal(adj.Factor, "adjustments.factor")
		if err != nil {
			return model.CompanyData{}, err
		}
		data.Adjustments = append(data.Adjustments, model.Adjustment{
			Name:   adj.Name,
			Factor: factor,
			Reason: adj.Reason,
		})
	}

	return data, nil
}

func (s seedComparableSet) toModel() (model.ComparableSet, error) {
	asOf, err := time.Parse(seedDateLayout, s.AsOfDate)
	if err != nil {
		return model.ComparableSet{}, eris.Wrap(err, "as_of_date")
	}
	source, err := s.Source.toModel()
	if err != nil {
		return model.ComparableSet{}, err
	}

	set := model.ComparableSet{Sector: s.Sector, AsOfDate: asOf, Source: source}
	for _, c := range s.Companies {
		revenue, err := requiredDecimal(c.RevenueTTM, "revenue_ttm")
		if err != nil {
			return model.ComparableSet{}, err
		}
		marketCap, err := requiredDecimal(c.MarketCap, "market_cap")
		if err != nil {
			return model.ComparableSet{}, err
		}
		multiple, err := requiredDecimal(c.EVRevenueMultiple, "ev_revenue_multiple")
		if err != nil {
			return model.ComparableSet{}, err
		}
		growth, err := optionalDecimal(c.RevenueGrowthYoY, "revenue_growth_yoy")
		if err != nil {
			return model.ComparableSet{}, err
		}
		set.Companies = append(set.Companies, model.ComparableCompany{
			Ticker:            c.Ticker,
			Name:              c.Name,
			Sector:            s.Sector,
			RevenueTTM:        revenue,
			MarketCap:         marketCap,
			EVRevenueMultiple: multiple,
			RevenueGrowthYoY:  growth,
			SourceName:        source.Name,
		})
	}
	return set, nil
}

func (s seedIndex) toModel() (model.DataSource, []model.MarketIndex, error) {
	source, err := s.Source.toModel()
	if err != nil {
		return model.DataSource{}, nil, err
	}

	points := make([]model.MarketIndex, 0, len(s.Points))
	for _, p := range s.Points {
		date, err := time.Parse(seedDateLayout, p.Date)
		if err != nil {
			return model.DataSource{}, nil, eris.Wrap(err, "points.date")
		}
		value, err := requiredDecimal(p.Value, "points.value")
		if err != nil {
			return model.DataSource{}, nil, err
		}
		points = append(points, model.MarketIndex{Name: s.Name, Date: date, Value: value})
	}
	return source, points, nil
}

func (s seedSource) toModel() (model.DataSource, error) {
	retrieved, err := time.Parse(seedDateLayout, s.RetrievedAt)
	if err != nil {
		return model.DataSource{}, eris.Wrap(err, "source.retrieved_at")
	}
	return model.DataSource{Name: s.Name, RetrievedAt: retrieved}, nil
}

func requiredDecimal(raw, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, eris.Wrapf(err, "parse %s %q", field, raw)
	}
	return d, nil
}

func optionalDecimal(raw, field string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := requiredDecimal(raw, field)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
