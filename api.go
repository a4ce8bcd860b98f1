package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mojtvz/internal/loginpage"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"
)

type tokenInput struct {
	Token string `query:"TVZ" doc:"Page token the caller already holds"`
}

type slideBody struct {
	ImageURL string `json:"imageUrl"`
	Caption  string `json:"caption,omitempty"`
	Alt      string `json:"alt,omitempty"`
	Link     string `json:"link,omitempty"`
}

type slidesOutput struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Slides []slideBody `json:"slides"`
	}
}

type tokenOutput struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Token       string    `json:"token"`
		IssuedAt    time.Time `json:"issuedAt"`
		ExpiresAt   time.Time `json:"expiresAt"`
		GuestAction string    `json:"guestAction"`
	}
}

func registerAPI(api huma.API, a *app) {
	group := huma.NewGroup(api, "/api")

	huma.Get(group, "/slides", func(ctx context.Context, in *tokenInput) (*slidesOutput, error) {
		page, pt, err := a.page(ctx, in.Token)
		if err != nil {
			return nil, apiPageError(err)
		}
		out := &slidesOutput{SetCookie: a.portalCookies(pt)}
		out.Body.Slides = make([]slideBody, 0, len(page.Slides))
		for _, s := range page.Slides {
			out.Body.Slides = append(out.Body.Slides, slideBody{
				ImageURL: page.ImageURL(s),
				Caption:  s.Caption,
				Alt:      s.Alt,
				Link:     s.Link,
			})
		}
		return out, nil
	}, func(op *huma.Operation) {
		op.Summary = "Carousel slides with token-keyed image URLs"
	})

	huma.Get(group, "/token", func(ctx context.Context, in *tokenInput) (*tokenOutput, error) {
		page, pt, err := a.page(ctx, in.Token)
		if err != nil {
			return nil, apiPageError(err)
		}
		out := &tokenOutput{SetCookie: a.portalCookies(pt)}
		out.Body.Token = page.Token
		out.Body.IssuedAt = pt.IssuedAt.UTC()
		out.Body.GuestAction = page.GuestAction()
		if exp, ok := a.tokens.Expires(page.Token); ok {
			out.Body.ExpiresAt = exp.UTC()
		}
		return out, nil
	}, func(op *huma.Operation) {
		op.Summary = "Page token bound to this browser session"
	})
}

func apiPageError(err error) error {
	if errors.Is(err, loginpage.ErrNoSlides) || errors.Is(err, loginpage.ErrMissingSlideImage) {
		log.Error().Err(err).Msg("carousel misconfigured")
		return huma.Error500InternalServerError("carousel misconfigured")
	}
	log.Error().Err(err).Msg("page token unavailable")
	return huma.Error503ServiceUnavailable("page token unavailable")
}
