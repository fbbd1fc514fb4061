package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Page names accepted by Renderer.Render.
const (
	PageIndex     = "index"
	PageAbout     = "about"
	PageDashboard = "dashboard"
	PageConnect   = "connect"
	PageNotFound  = "404"
)

var pages = []string{PageIndex, PageAbout, PageDashboard, PageConnect, PageNotFound}

// zeroDecimalCurrencies are shown without fractional digits.
var zeroDecimalCurrencies = map[string]bool{"CLP": true, "JPY": true, "KRW": true, "PYG": true}

// Renderer executes the embedded page templates. Each page is parsed together
// with base.html so every page shares one layout.
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"money": FormatMoney,
		"upper": strings.ToUpper,
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New("base.html").Funcs(funcs).ParseFS(files, "templates/base.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		templates[page] = tmpl
	}
	return &Renderer{templates: templates}, nil
}

// Render executes page into a buffer first so template errors never leave a
// half-written response behind.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// FormatMoney renders an amount with thousands separators, e.g. "$1,500 CLP".
func FormatMoney(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(currency)
	places := int32(2)
	if zeroDecimalCurrencies[currency] {
		places = 0
	}

	fixed := amount.Abs().StringFixed(places)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	if currency != "" {
		b.WriteByte(' ')
		b.WriteString(currency)
	}
	return b.String()
}
