// Package gallery loads the carousel slides shown on the login page.
package gallery

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	"mojtvz/internal/loginpage"
)

var ErrEmptyGallery = errors.New("gallery has no slides")

var validate = validator.New()

// File is the on-disk layout of SLIDES_FILE.
//
//	slides:
//	  - image: /skini/galerija/190001/Naslovnica/1/1
//	    link: https://example.com/event
//	  - image: /skini/galerija/190001/Naslovnica/1/2
//	    caption: E-sport
type File struct {
	Slides []loginpage.Slide `yaml:"slides" validate:"required,min=1,dive"`
}

// Default mirrors the portal's front page gallery.
func Default() []loginpage.Slide {
	return []loginpage.Slide{
		{Image: "/skini/galerija/190001/Naslovnica/1/1", Link: "https://core-event.co/events/brucosijada-tvz-x-geof-u-tvornici-kulture-78ac/"},
		{Image: "/skini/galerija/190001/Naslovnica/1/2", Caption: "E-sport", Alt: "E-sport"},
		{Image: "/skini/galerija/190001/Naslovnica/1/3"},
	}
}

func Parse(data []byte) ([]loginpage.Slide, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode slides: %w", err)
	}
	if len(f.Slides) == 0 {
		return nil, ErrEmptyGallery
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid slides: %w", err)
	}
	return f.Slides, nil
}

// Load reads slides from path, or returns Default when path is empty.
func Load(path string) ([]loginpage.Slide, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read slides file: %w", err)
	}
	slides, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info().Str("path", path).Int("slides", len(slides)).Msg("loaded carousel slides")
	return slides, nil
}
