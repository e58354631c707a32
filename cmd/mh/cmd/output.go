package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	apiclient "github.com/donaldgifford/meli-harvester/internal/api/client"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

const timeLayout = "2006-01-02 15:04:05"

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printStatus(w io.Writer, s *apiclient.AuthStatus, q *apiclient.Quota) error {
	tw := newTabWriter(w)
	tw.writef("Account:\t%s\n", s.AccountID)
	if s.Identity.Authenticated {
		tw.writef("Authenticated:\tyes (%s, id %d)\n", s.Identity.Nickname, s.Identity.UserID)
	} else {
		tw.writef("Authenticated:\tno (%s)\n", s.Identity.Error)
	}
	tw.writef("Access token:\t%s\n", orDash(s.Token.TokenPreview))
	if s.Token.ExpiresAt != nil {
		tw.writef("Expires:\t%s\n", s.Token.ExpiresAt.Local().Format(timeLayout))
	}
	tw.writef("Refreshes:\t%d\n", s.Token.Refreshes)
	if q != nil {
		limit := "unlimited"
		if q.DailyLimit > 0 {
			limit = strconv.FormatInt(q.DailyLimit, 10)
		}
		tw.writef("API calls today:\t%d / %s\n", q.DailyUsed, limit)
	}
	return tw.finish()
}

func printReport(w io.Writer, r *domain.RunReport) error {
	tw := newTabWriter(w)
	tw.writef("Run:\t%s\n", r.RunID)
	tw.writef("Status:\t%s\n", r.Status)
	if r.Reason != domain.ReasonNone {
		tw.writef("Reason:\t%s\n", r.Reason)
	}
	tw.writef("Started:\t%s\n", r.StartedAt.Local().Format(timeLayout))
	tw.writef("Duration:\t%s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	tw.writef("Items:\t%d of %d resolved\n", r.Resolved, r.Requested)
	if len(r.Skipped) > 0 {
		tw.writef("Skipped:\t%v\n", r.Skipped)
	}
	if r.Error != "" {
		tw.writef("Error:\t%s\n", r.Error)
	}
	return tw.finish()
}

func printRunsTable(w io.Writer, runs []domain.RunReport) error {
	tw := newTabWriter(w)
	tw.writef("RUN\tSTATUS\tSTARTED\tRESOLVED\tREASON\n")
	for i := range runs {
		r := &runs[i]
		tw.writef("%s\t%s\t%s\t%d/%d\t%s\n",
			r.RunID,
			r.Status,
			r.StartedAt.Local().Format(timeLayout),
			r.Resolved,
			r.Requested,
			orDash(string(r.Reason)),
		)
	}
	return tw.finish()
}

func printProductsTable(w io.Writer, products []domain.ProductRecord) error {
	tw := newTabWriter(w)
	tw.writef("ID\tTITLE\tPRICE\tSTATUS\tSTOCK\tSOLD\tACCESS\n")
	for i := range products {
		p := &products[i]
		tw.writef("%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			p.ID,
			truncate(p.Title, 40),
			formatPrice(p.Price, p.Currency),
			p.Status,
			p.AvailableQuantity,
			p.SoldQuantity,
			p.AccessMethod,
		)
	}
	return tw.finish()
}

func printProductDetail(w io.Writer, p *domain.ProductRecord) error {
	tw := newTabWriter(w)
	tw.writef("ID:\t%s\n", p.ID)
	tw.writef("Title:\t%s\n", p.Title)
	tw.writef("Price:\t%s\n", formatPrice(p.Price, p.Currency))
	if p.OriginalPrice != nil {
		tw.writef("Original price:\t%s\n", formatPrice(p.OriginalPrice, p.Currency))
	}
	tw.writef("Status:\t%s\n", p.Status)
	tw.writef("Condition:\t%s\n", p.Condition)
	tw.writef("Stock:\t%d available, %d sold\n", p.AvailableQuantity, p.SoldQuantity)
	tw.writef("Free shipping:\t%v\n", p.FreeShipping)
	tw.writef("Location:\t%s, %s\n", p.Location.City, p.Location.State)
	tw.writef("Warranty:\t%s\n", p.Warranty)
	tw.writef("Access:\t%s\n", p.AccessMethod)
	tw.writef("Link:\t%s\n", p.Permalink)
	tw.writef("Image:\t%s\n", p.ImageURL)
	tw.writef("Description:\t%s\n", truncate(p.Description, 80))
	return tw.finish()
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatPrice(p *float64, currency string) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f %s", *p, currency)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
