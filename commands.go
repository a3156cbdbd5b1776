package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/lease-engine/internal/database"
	"gitlab.com/yelinaung/lease-engine/internal/index"
	"gitlab.com/yelinaung/lease-engine/internal/ledger"
	"gitlab.com/yelinaung/lease-engine/internal/logger"
	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/regularization"
	"gitlab.com/yelinaung/lease-engine/internal/report"
	"gitlab.com/yelinaung/lease-engine/internal/revision"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"migrate":    runMigrate,
	"index-load": runIndexLoad,
	"index-sync": runIndexSync,
	"record":     runRecord,
	"suggest":    runSuggest,
	"preview":    runPreview,
	"commit":     runCommit,
	"quote":      runQuote,
	"revise":     runRevise,
	"state":      runState,
}

func runMigrate(ctx context.Context, a *app, _ []string) error {
	if err := database.RunMigrations(ctx, a.pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Log.Info().Msg("Database migrated successfully")
	return nil
}

func runIndexLoad(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: index-load <file.yaml>")
	}
	file, err := index.LoadSeriesFile(args[0])
	if err != nil {
		return err
	}
	n, err := file.Load(ctx, a.store.Index())
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d values of %s\n", n, file.Series)
	return nil
}

func runIndexSync(ctx context.Context, a *app, _ []string) error {
	if a.cfg.IndexSourceURL == "" {
		return fmt.Errorf("INDEX_SOURCE_URL is not set")
	}
	fetcher := index.NewCachedClient(index.NewHTTPClient(a.cfg.IndexSourceURL, a.cfg.IndexHTTPTimeout), a.cfg.IndexCacheTTL)
	n, err := index.NewSyncer(fetcher, a.store.Index(), a.cfg.IndexSeries).Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Synced %d values of %s\n", n, a.cfg.IndexSeries)
	return nil
}

func runRecord(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	property := fs.Int64("property", 0, "property id")
	unit := fs.Int64("unit", 0, "rental unit id (0 for the whole property)")
	category := fs.String("category", "", "expense category, suggested from the label when empty")
	label := fs.String("label", "", "expense label")
	amount := fs.String("amount", "", "total amount, e.g. 120.50")
	recoverable := fs.String("recoverable", "", "recoverable amount, defaults from the category")
	occurred := fs.String("date", "", "date occurred, YYYY-MM-DD")
	frequency := fs.String("frequency", string(models.FrequencyOnce), "ONCE, MONTHLY, QUARTERLY or YEARLY")
	proof := fs.String("proof", "", "proof document reference")
	if err := fs.Parse(args); err != nil {
		return err
	}

	total, err := parseCents("amount", *amount)
	if err != nil {
		return err
	}
	in := ledger.RecordInput{
		PropertyID:     *property,
		Category:       *category,
		Label:          *label,
		AmountTotal:    total,
		DateOccurred:   *occurred,
		Frequency:      models.Frequency(strings.ToUpper(*frequency)),
		ProofReference: *proof,
	}
	if *unit != 0 {
		in.RentalUnitID = unit
	}
	if *recoverable != "" {
		cents, err := parseCents("recoverable", *recoverable)
		if err != nil {
			return err
		}
		yes := true
		in.IsRecoverable = &yes
		in.AmountRecoverable = &cents
	}
	if in.Category == "" {
		c, err := a.ledger.SuggestCategory(ctx, in.Label)
		if err != nil {
			return err
		}
		in.Category = string(c)
	}

	exp, err := a.ledger.RecordExpense(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded expense %d: %s %s, recoverable %s, deductible %s\n",
		exp.ID, exp.Category, report.Cents(exp.AmountTotal),
		report.Cents(exp.AmountRecoverable), report.Cents(exp.AmountDeductible))
	return nil
}

func runSuggest(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: suggest <label>")
	}
	c, err := a.ledger.SuggestCategory(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println(c)
	return nil
}

type regularizationFlags struct {
	fs       *flag.FlagSet
	lease    *int64
	property *int64
	year     *int
	exclude  int64List
	csv      *string
	chart    *string
}

func newRegularizationFlags(name string) *regularizationFlags {
	f := &regularizationFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.lease = f.fs.Int64("lease", 0, "lease id")
	f.property = f.fs.Int64("property", 0, "property id")
	f.year = f.fs.Int("year", time.Now().Year()-1, "regularization year")
	f.fs.Var(&f.exclude, "exclude", "comma separated expense ids to leave out")
	f.csv = f.fs.String("csv", "", "write the statement CSV to this file")
	f.chart = f.fs.String("chart", "", "write the category chart PNG to this file")
	return f
}

func (f *regularizationFlags) preview(ctx context.Context, a *app, args []string) (*regularization.Preview, error) {
	if err := f.fs.Parse(args); err != nil {
		return nil, err
	}
	p, err := a.regularization.Preview(ctx, *f.lease, *f.property, *f.year)
	if err != nil {
		return nil, err
	}
	for _, id := range f.exclude {
		if err := p.Exclude(id); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (f *regularizationFlags) writeFiles(st report.Statement) error {
	if *f.csv != "" {
		data, err := report.RegularizationCSV(st)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*f.csv, data, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", *f.csv, err)
		}
	}
	if *f.chart != "" && len(st.Lines) > 0 {
		data, err := report.RegularizationChart(st)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*f.chart, data, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", *f.chart, err)
		}
	}
	return nil
}

func runPreview(ctx context.Context, a *app, args []string) error {
	f := newRegularizationFlags("preview")
	p, err := f.preview(ctx, a, args)
	if err != nil {
		return err
	}

	st := report.FromPreview(p)
	for _, line := range p.Expenses {
		fmt.Printf("  #%d %s %-20s %-30s %s\n", line.ExpenseID, line.DateOccurred.Format(time.DateOnly),
			line.Category, line.Label, report.Cents(line.AmountRecoverable))
	}
	for _, prov := range p.Provisions {
		end := "open"
		if prov.EndDate != nil {
			end = prov.EndDate.Format(time.DateOnly)
		}
		fmt.Printf("  provision period #%d %s..%s %d x %s = %s\n", prov.PeriodID, prov.StartDate.Format(time.DateOnly), end,
			prov.Months, report.Cents(prov.MonthlyCents), report.Cents(prov.AmountCents))
	}
	fmt.Println(st.Summary())
	if p.ActiveID != nil {
		fmt.Printf("Already committed as record %d\n", *p.ActiveID)
	}
	return f.writeFiles(st)
}

func runCommit(ctx context.Context, a *app, args []string) error {
	f := newRegularizationFlags("commit")
	supersedes := f.fs.Int64("supersedes", 0, "id of the record to supersede")
	p, err := f.preview(ctx, a, args)
	if err != nil {
		return err
	}

	var rec *models.Regularization
	if *supersedes != 0 {
		rec, err = a.regularization.Supersede(ctx, *supersedes, p.CommitInput())
	} else {
		rec, err = a.regularization.Commit(ctx, p.CommitInput())
	}
	if err != nil {
		return err
	}

	st := report.FromRecord(rec)
	fmt.Printf("Committed record %d (%s)\n%s\n", rec.ID, rec.Reference, st.Summary())
	a.notify.Regularization(ctx, rec)
	return f.writeFiles(st)
}

func runQuote(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	lease := fs.Int64("lease", 0, "lease id")
	effective := fs.String("date", "", "effective date, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := models.ParseDate("date", *effective)
	if err != nil {
		return err
	}

	q, err := a.revision.Quote(ctx, *lease, d)
	if err != nil {
		return err
	}
	printRevision(&q.Revision)
	return nil
}

func runRevise(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("revise", flag.ContinueOnError)
	leaseID := fs.Int64("lease", 0, "lease id")
	effective := fs.String("date", "", "effective date, YYYY-MM-DD")
	rent := fs.String("rent", "", "new rent, defaults to the indexed rent")
	charges := fs.String("charges", "", "new charges provision, defaults to the current one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := models.ParseDate("date", *effective)
	if err != nil {
		return err
	}

	q, err := a.revision.Quote(ctx, *leaseID, d)
	if err != nil {
		return err
	}
	in := revision.CommitInput{
		LeaseID:         *leaseID,
		NewRentCents:    q.NewRentCents,
		NewChargesCents: q.ServiceChargesCents,
		EffectiveDate:   d,
	}
	if *rent != "" {
		if in.NewRentCents, err = parseCents("rent", *rent); err != nil {
			return err
		}
	}
	if *charges != "" {
		if in.NewChargesCents, err = parseCents("charges", *charges); err != nil {
			return err
		}
	}

	period, err := a.revision.CommitRevision(ctx, in)
	if err != nil {
		return err
	}
	printRevision(&q.Revision)
	fmt.Printf("Opened period %d from %s\n", period.ID, period.StartDate.Format(time.DateOnly))

	lease, err := a.store.Leases().GetByID(ctx, *leaseID)
	if err != nil {
		logger.Log.Warn().Err(err).Int64("lease_id", *leaseID).Msg("Revision committed but lease reload failed")
		return nil
	}
	a.notify.Revision(ctx, lease, period)
	return nil
}

func runState(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("state", flag.ContinueOnError)
	lease := fs.Int64("lease", 0, "lease id")
	today := fs.String("today", "", "reference date, YYYY-MM-DD (defaults to today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ref := models.Date(time.Now().In(a.cfg.Location()))
	if *today != "" {
		d, err := models.ParseDate("today", *today)
		if err != nil {
			return err
		}
		ref = d
	}

	st, err := a.revision.State(ctx, *lease, ref)
	if err != nil {
		return err
	}
	fmt.Printf("%s (anniversary %s)\n", st.State, st.Anniversary.Format(time.DateOnly))
	return nil
}

func printRevision(r *revision.Revision) {
	fmt.Printf("Current rent: %s\nIndexed rent: %s\nIndex: %d-Q%d %s -> %d-Q%d %s\nAnchor: %s, effective: %s\n",
		report.Cents(r.CurrentRentCents), report.Cents(r.NewRentCents),
		r.BaseIndex.Year, r.BaseIndex.Quarter, r.BaseIndex.Value,
		r.NewIndex.Year, r.NewIndex.Quarter, r.NewIndex.Value,
		r.AnchorDate.Format(time.DateOnly), r.EffectiveDate.Format(time.DateOnly))
}

// parseCents converts a decimal amount such as "120.5" to minor units.
func parseCents(field, s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, &models.ValidationError{Field: field, Reason: "must be a decimal amount"}
	}
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, &models.ValidationError{Field: field, Reason: "must have at most two decimals"}
	}
	return cents.IntPart(), nil
}

// int64List is a flag.Value for comma separated ids.
type int64List []int64

func (l *int64List) String() string {
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func (l *int64List) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", part)
		}
		*l = append(*l, v)
	}
	return nil
}
