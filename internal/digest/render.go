package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"cryptodigest/internal/market"

	"github.com/shopspring/decimal"
)

const DefaultSubject = "Daily Cryptocurrency Update"

// Message is a rendered digest ready to hand to an email sender.
type Message struct {
	Subject string
	HTML    string
}

var bodyTemplate = template.Must(template.New("digest").Parse(`
<h2>Daily Cryptocurrency Update</h2>
<p>Date: {{.Date}}</p>
{{- range .Assets}}
<h3>{{.Name}} ({{.Ticker}})</h3>
<p>Current Price: {{.Price}}</p>
<p>24h Change: {{.Change}}</p>
{{- end}}
`))

type assetView struct {
	Name, Ticker, Price, Change string
}

// Renderer formats snapshots into digest emails.
type Renderer struct {
	Subject string // DefaultSubject when empty
}

// Render is Renderer{}.Render.
func Render(snapshot market.Snapshot, date time.Time) (Message, error) {
	return Renderer{}.Render(snapshot, date)
}

// Render builds the digest for date. It is pure: the same snapshot and date
// always produce the same bytes.
func (r Renderer) Render(snapshot market.Snapshot, date time.Time) (Message, error) {
	if err := snapshot.Validate(); err != nil {
		return Message{}, fmt.Errorf("render digest: %w", err)
	}

	view := struct {
		Date   string
		Assets []assetView
	}{Date: date.Format("2006-01-02")}

	for _, asset := range market.Assets {
		q := snapshot[asset]
		view.Assets = append(view.Assets, assetView{
			Name:   asset.Name(),
			Ticker: asset.Ticker(),
			Price:  FormatUSD(q.Price),
			Change: FormatPercent(q.Change24h),
		})
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, view); err != nil {
		return Message{}, fmt.Errorf("render digest: %w", err)
	}

	subject := r.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return Message{Subject: subject, HTML: buf.String()}, nil
}

// FormatUSD renders d as dollars with two decimals and comma grouping,
// e.g. 65000.5 -> "$65,000.50".
func FormatUSD(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	return sign + "$" + groupThousands(intPart) + "." + frac
}

// FormatPercent renders d with two decimals, e.g. -2.345 -> "-2.35%".
// Halves round away from zero.
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
