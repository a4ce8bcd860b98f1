package main

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const unavailableHTML = `<!doctype html>
<html lang="hr">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>moj.tvz.hr</title>
  <link rel="stylesheet" href="/static/css/mojtvz.css">
</head>
<body class="unavailable">
  <div class="card unavailable-card">
    <h1>moj.tvz.hr</h1>
    <div class="error">{{MESSAGE}}</div>
    <p><a href="/">Pokušaj ponovno</a></p>
  </div>
</body>
</html>
`

func serveUnavailable(w http.ResponseWriter, message string) {
	setNoCacheHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Retry-After", "30")
	w.WriteHeader(http.StatusServiceUnavailable)
	if _, err := fmt.Fprint(w, strings.Replace(unavailableHTML, "{{MESSAGE}}", html.EscapeString(message), 1)); err != nil {
		log.Warn().Err(err).Msg("write unavailable page")
	}
}
