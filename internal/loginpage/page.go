// Package loginpage renders the portal's login landing page: a branding
// carousel, the institutional SSO form and the guest login modal.
package loginpage

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Form and field names posted to the portal backend.
const (
	TokenField    = "TVZ"
	LinkParam     = "link"
	SSOFormName   = "microsoft_form"
	SSOButton     = "microsoft_login"
	GuestFormName = "form_guest"
	GuestField    = "uneseni_oib"
	GuestButton   = "guestlogin"
	GuestModalID  = "gostlogin"
	CarouselID    = "naslovnica"

	// GuestPattern is the HTML pattern attribute of the guest identifier input.
	GuestPattern = "[0-9]{11}"
)

var (
	ErrMissingToken           = errors.New("missing session token")
	ErrNoSlides               = errors.New("carousel needs at least one slide")
	ErrMissingSlideImage      = errors.New("slide has no image")
	ErrInvalidGuestIdentifier = errors.New("guest identifier must be exactly 11 digits")
)

// Browsers anchor pattern attributes to the whole value.
var guestPattern = regexp.MustCompile(`^(?:` + GuestPattern + `)$`)

// GuestIdentifierValid reports whether the guest form would be submitted
// with s in the identifier field.
func GuestIdentifierValid(s string) bool {
	return guestPattern.MatchString(s)
}

// Slide is one carousel entry. Image is the resource locator passed to the
// image retrieval endpoint; Caption and Link are optional.
type Slide struct {
	Image   string `json:"image" yaml:"image" validate:"required"`
	Caption string `json:"caption,omitempty" yaml:"caption" validate:"omitempty,max=200"`
	Alt     string `json:"alt,omitempty" yaml:"alt" validate:"omitempty,max=200"`
	Link    string `json:"link,omitempty" yaml:"link" validate:"omitempty,url|eq=#"`
}

// Links holds the external endpoints the page points at.
type Links struct {
	ImageEndpoint string
	GuestPath     string
	GuestResource string
}

// Page is everything one render depends on.
type Page struct {
	Token  string
	Slides []Slide
	Links  Links
}

func NewPage(token string, slides []Slide, links Links) (Page, error) {
	if strings.TrimSpace(token) == "" {
		return Page{}, ErrMissingToken
	}
	if len(slides) == 0 {
		return Page{}, ErrNoSlides
	}
	for _, s := range slides {
		if strings.TrimSpace(s.Image) == "" {
			return Page{}, ErrMissingSlideImage
		}
	}
	return Page{Token: token, Slides: slides, Links: links}, nil
}

// ImageURL is the image retrieval URL of a slide, keyed by the page token.
func (p Page) ImageURL(s Slide) string {
	return withTokenQuery(p.Links.ImageEndpoint, p.Token, s.Image)
}

// GuestAction is where the guest form posts: the guest path with the token
// and resource locator in the query.
func (p Page) GuestAction() string {
	return withTokenQuery(p.Links.GuestPath, p.Token, p.Links.GuestResource)
}

// SSOPayload is what a browser posts when the SSO button is clicked.
func (p Page) SSOPayload() url.Values {
	return url.Values{
		TokenField: {p.Token},
		SSOButton:  {""},
	}
}

// GuestPayload is what a browser posts from the guest modal. Identifiers the
// browser would refuse to submit are rejected with ErrInvalidGuestIdentifier.
func (p Page) GuestPayload(identifier string) (url.Values, error) {
	if !GuestIdentifierValid(identifier) {
		return nil, ErrInvalidGuestIdentifier
	}
	return url.Values{
		TokenField:  {p.Token},
		GuestField:  {identifier},
		GuestButton: {""},
	}, nil
}

func withTokenQuery(endpoint, token, link string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteString(sep)
	b.WriteString(TokenField)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(token))
	if link != "" {
		b.WriteString("&" + LinkParam + "=")
		b.WriteString(queryPath(link))
	}
	return b.String()
}

// queryPath escapes a resource locator for a query value but keeps slashes
// readable, the way the portal writes them.
func queryPath(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "%2F", "/")
}
