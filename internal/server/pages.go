package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kartoza/airscope/internal/charts"
	"github.com/kartoza/airscope/internal/contact"
	"github.com/kartoza/airscope/internal/explore"
)

// pageSet maps a page name to its template, each parsed with the layout
type pageSet map[string]*template.Template

var pageNames = []string{"home", "about", "flowchart", "explore", "contact", "notfound"}

func loadPages(fsys fs.FS) (pageSet, error) {
	pages := make(pageSet, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(fsys, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// pageData is passed to every template
type pageData struct {
	Title   string
	Active  string
	Version string
	Explore *exploreView
	Contact *contactView
	Path    string
}

// fieldView is one input of the Explore form as rendered
type fieldView struct {
	explore.Field
	Value string
	Error string
}

type exploreView struct {
	Fields []fieldView
	Error  string
	// HasResults shows the results card, even when it has no panels
	HasResults bool
	Panels     []explore.Panel
	BarChart   template.HTML
	PieChart   template.HTML
}

type contactView struct {
	Message   contact.Message
	Errors    map[string]string
	Submitted bool
	// RefreshSeconds is how long the success banner stays before the page
	// returns to an empty form
	RefreshSeconds int
}

// render executes the named page into a buffer first so template errors
// never produce half a page
func (s *Server) render(w http.ResponseWriter, status int, name string, data pageData) {
	data.Version = s.cfg.Version
	t, ok := s.pages[name]
	if !ok {
		http.Error(w, "Page not found", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error().Err(err).Str("page", name).Msg("Template error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) handleStatic(name string) http.HandlerFunc {
	titles := map[string]string{
		"home":      "AirScope",
		"about":     "About AirScope",
		"flowchart": "System Architecture",
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, name, pageData{Title: titles[name], Active: name})
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusNotFound, "notfound", pageData{Title: "Page Not Found", Path: r.URL.Path})
}

// handleExplore shows the prediction form. GET starts from the sample
// values; POST submits the posted values and shows the results.
func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	var page *explore.Page
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		page = explore.NewPage(explore.FormFromValues(r.PostForm))
		page.Submit(r.Context(), s.predictor)
	} else {
		page = explore.NewPage(explore.SampleForm(s.now()))
	}

	s.render(w, http.StatusOK, "explore", pageData{
		Title:   "Air Quality Prediction",
		Active:  "explore",
		Explore: s.exploreView(page),
	})
}

func (s *Server) exploreView(page *explore.Page) *exploreView {
	v := &exploreView{Error: page.Error}
	for _, f := range explore.Fields {
		v.Fields = append(v.Fields, fieldView{
			Field: f,
			Value: page.Form[f.Name],
			Error: page.FieldErrors[f.Name],
		})
	}
	v.HasResults = page.HasResults()
	if !v.HasResults {
		return v
	}
	if page.Prediction.Empty() {
		log.Warn().Msg("Prediction has no estimates")
		return v
	}

	v.Panels = explore.Panels(page.Prediction)
	points := explore.ChartData(page.Prediction)

	var err error
	if v.BarChart, err = charts.BarSVG(points); err != nil && !errors.Is(err, charts.ErrNoData) {
		log.Warn().Err(err).Msg("Bar chart not rendered")
	}
	if v.PieChart, err = charts.PieSVG(points); err != nil && !errors.Is(err, charts.ErrNoData) {
		log.Warn().Err(err).Msg("Pie chart not rendered")
	}
	return v
}

// handleContact shows the contact form. A valid POST is acknowledged with a
// banner that refreshes back to the empty form.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	view := &contactView{}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		msg := contact.MessageFromValues(r.PostForm)
		if errs := msg.Validate(); errs != nil {
			view.Message = msg
			view.Errors = errs
		} else {
			now := s.now()
			receipt := s.contact.Submit(msg, now)
			view.Submitted = receipt.Submitted(now)
			view.RefreshSeconds = int(math.Ceil(receipt.Remaining(now).Seconds()))
		}
	}

	s.render(w, http.StatusOK, "contact", pageData{
		Title:   "Contact Us",
		Active:  "contact",
		Contact: view,
	})
}
