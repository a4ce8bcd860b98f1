package loginpage

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/login.html
var templateFS embed.FS

// Assets are the stylesheet and script URLs referenced by the page.
type Assets struct {
	BootstrapCSS string
	IconsCSS     string
	JQuery       string
	BootstrapJS  string
	Stylesheet   string
	Favicon      string
}

type Options struct {
	Title  string
	Assets Assets
}

// Renderer holds the parsed page template. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
	opts Options
}

func New(opts Options) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("parse login template: %w", err)
	}
	if opts.Title == "" {
		opts.Title = "moj.tvz.hr"
	}
	return &Renderer{tmpl: tmpl, opts: opts}, nil
}

type fieldNames struct {
	Token, SSOForm, SSOButton, GuestForm, GuestField, GuestButton, GuestPattern, GuestModal, Carousel string
}

var fields = fieldNames{
	Token:        TokenField,
	SSOForm:      SSOFormName,
	SSOButton:    SSOButton,
	GuestForm:    GuestFormName,
	GuestField:   GuestField,
	GuestButton:  GuestButton,
	GuestPattern: GuestPattern,
	GuestModal:   GuestModalID,
	Carousel:     CarouselID,
}

type indicatorView struct {
	Index  int
	Label  string
	Active bool
}

type slideView struct {
	ImageURL string
	Caption  string
	Alt      string
	Link     string
	Active   bool
}

type pageView struct {
	Title       string
	Assets      Assets
	Fields      fieldNames
	Token       string
	GuestAction string
	Indicators  []indicatorView
	Slides      []slideView
}

func (r *Renderer) view(p Page) pageView {
	v := pageView{
		Title:       r.opts.Title,
		Assets:      r.opts.Assets,
		Fields:      fields,
		Token:       p.Token,
		GuestAction: p.GuestAction(),
		Indicators:  make([]indicatorView, 0, len(p.Slides)),
		Slides:      make([]slideView, 0, len(p.Slides)),
	}
	for i, s := range p.Slides {
		v.Indicators = append(v.Indicators, indicatorView{
			Index:  i,
			Label:  fmt.Sprintf("Slide %d", i),
			Active: i == 0,
		})
		v.Slides = append(v.Slides, slideView{
			ImageURL: p.ImageURL(s),
			Caption:  s.Caption,
			Alt:      s.Alt,
			Link:     s.Link,
			Active:   i == 0,
		})
	}
	return v
}

// Render writes the login document for p. Callers that need all-or-nothing
// output should render into a buffer.
func (r *Renderer) Render(w io.Writer, p Page) error {
	if p.Token == "" {
		return ErrMissingToken
	}
	if len(p.Slides) == 0 {
		return ErrNoSlides
	}
	if err := r.tmpl.ExecuteTemplate(w, "login.html", r.view(p)); err != nil {
		return fmt.Errorf("render login page: %w", err)
	}
	return nil
}
