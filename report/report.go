// Package report renders one batch's outcome as a mail-ready summary:
// every signal at the boundary, joined against the ledger rows the engine
// actually wrote, so a skipped signal shows up as a row with no fill.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/spotbot/store"
)

// Store is the persistence slice the reporter reads.
type Store interface {
	SignalsAt(batch time.Time) ([]store.Signal, error)
	LedgerAt(batch time.Time) ([]store.Position, error)
}

// Row is one line of the batch summary. Executed marks whether a ledger
// row matched the signal; QuoteQty and PnL are only meaningful when it did.
type Row struct {
	Pair     string
	Strategy string
	Action   string
	QuoteQty float64
	PnL      float64
	Executed bool
}

func (r Row) quoteQty() string {
	if !r.Executed {
		return ""
	}
	return fmt.Sprintf("%.2f", r.QuoteQty)
}

func (r Row) pnl() string {
	if !r.Executed {
		return ""
	}
	return fmt.Sprintf("%.2f", r.PnL)
}

type Reporter struct {
	st     Store
	mailer Mailer
	loc    *time.Location
	log    *zap.Logger
}

func New(st Store, mailer Mailer, loc *time.Location, log *zap.Logger) *Reporter {
	return &Reporter{st: st, mailer: mailer, loc: loc, log: log}
}

// Rows builds the batch summary: signals left-joined to ledger rows on
// (pair, strategy, action), ordered by action then pair.
func (r *Reporter) Rows(batch time.Time) ([]Row, error) {
	signals, err := r.st.SignalsAt(batch)
	if err != nil {
		return nil, err
	}
	ledger, err := r.st.LedgerAt(batch)
	if err != nil {
		return nil, err
	}

	type key struct{ pair, strat, action string }
	filled := make(map[key]store.Position, len(ledger))
	for _, p := range ledger {
		filled[key{p.Pair, p.Strategy, string(p.Action)}] = p
	}

	rows := make([]Row, 0, len(signals))
	for _, sig := range signals {
		row := Row{Pair: sig.Pair, Strategy: sig.Strategy, Action: string(sig.Action)}
		if p, ok := filled[key{sig.Pair, sig.Strategy, string(sig.Action)}]; ok {
			row.QuoteQty = p.QuoteQty
			row.PnL = p.PnL
			row.Executed = true
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Action != rows[j].Action {
			return rows[i].Action < rows[j].Action
		}
		return rows[i].Pair < rows[j].Pair
	})
	return rows, nil
}

// Batch sends the summary mail for one batch. The subject carries the
// data-quality score so a degraded run is visible without opening the body.
func (r *Reporter) Batch(batch time.Time, quality int) error {
	rows, err := r.Rows(batch)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s - %d", r.stamp(batch), quality)
	if err := r.mailer.Send(subject, renderText(rows), renderHTML(rows)); err != nil {
		return fmt.Errorf("batch report: %w", err)
	}
	r.log.Info("batch report sent",
		zap.Time("batch", batch), zap.Int("rows", len(rows)))
	return nil
}

// Alert sends a plain error mail for a failed batch.
func (r *Reporter) Alert(batch time.Time, cause error) error {
	subject := fmt.Sprintf("%s - ERROR", r.stamp(batch))
	body := cause.Error()
	if err := r.mailer.Send(subject, body, ""); err != nil {
		return fmt.Errorf("alert: %w", err)
	}
	return nil
}

func (r *Reporter) stamp(batch time.Time) string {
	return batch.In(r.loc).Format("2006-01-02 15:04:05")
}

func renderText(rows []Row) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "pair\tstrategy\taction\tquote_qty\tpnl")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Pair, r.Strategy, r.Action, r.quoteQty(), r.pnl())
	}
	w.Flush()
	return buf.String()
}

var htmlTmpl = template.Must(template.New("report").Parse(`<html><body>
<table border="1">
<tr><th>pair</th><th>strategy</th><th>action</th><th>quote_qty</th><th>pnl</th></tr>
{{range . -}}
<tr><td>{{.Pair}}</td><td>{{.Strategy}}</td><td>{{.Action}}</td><td>{{.QuoteQtyCell}}</td><td>{{.PnLCell}}</td></tr>
{{end -}}
</table>
</body></html>
`))

type htmlRow struct {
	Row
}

func (h htmlRow) QuoteQtyCell() string { return h.quoteQty() }
func (h htmlRow) PnLCell() string      { return h.pnl() }

func renderHTML(rows []Row) string {
	hr := make([]htmlRow, len(rows))
	for i, r := range rows {
		hr[i] = htmlRow{r}
	}
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, hr); err != nil {
		// Template and data are both static shapes; this cannot fail at
		// runtime with well-formed rows.
		return ""
	}
	return buf.String()
}
