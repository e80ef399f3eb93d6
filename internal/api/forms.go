package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"audioedit/internal/media"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report fields by their form names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "-" || name == "" {
				return strings.ToLower(fld.Name)
			}
			return name
		})
	})
	return validate
}

// processForm carries the non-file fields of a process upload.
type processForm struct {
	Mode      string   `form:"mode" validate:"omitempty,oneof=extend combine combine_extend"`
	Hours     *int     `form:"hours" validate:"omitempty,gte=0,lte=24"`
	Minutes   *int     `form:"minutes" validate:"omitempty,gte=0,lte=59"`
	Crossfade *float64 `form:"crossfade" validate:"omitempty,lte=10"`
	Method    string   `form:"method" validate:"omitempty,oneof=basic_crossfade smooth_curves eq_matched phase_aligned dynamic_normalized"`
	Format    string   `form:"format" validate:"omitempty,oneof=mp3 wav m4a flac"`
	Quality   string   `form:"quality" validate:"omitempty,max=16"`
	Suffix    string   `form:"suffix" validate:"omitempty,max=64,excludesall=/\\"`
	Normalize *bool    `form:"normalize"`
}

type processParams struct {
	mode      media.Mode
	method    media.Method
	format    media.OutputFormat
	quality   string
	target    time.Duration
	crossfade float64
	suffix    string
	normalize bool
}

// resolve validates the form and fills in defaults for omitted fields.
func (f processForm) resolve() (processParams, error) {
	if err := getValidator().Struct(f); err != nil {
		return processParams{}, formatValidation(err)
	}
	mode, err := media.ParseMode(f.Mode)
	if err != nil {
		return processParams{}, err
	}
	method, err := media.ParseMethod(f.Method)
	if err != nil {
		return processParams{}, err
	}
	format, err := media.ParseFormat(f.Format)
	if err != nil {
		return processParams{}, err
	}
	if !format.ValidQuality(f.Quality) {
		return processParams{}, fmt.Errorf("quality: must be one of: %s", strings.Join(format.Qualities(), " "))
	}

	hours, minutes := media.DefaultTargetHours, media.DefaultTargetMinutes
	if f.Hours != nil {
		hours = *f.Hours
	}
	if f.Minutes != nil {
		minutes = *f.Minutes
	}
	crossfade := media.CrossfadeDefault
	if f.Crossfade != nil {
		crossfade = *f.Crossfade
	}
	normalize := true
	if f.Normalize != nil {
		normalize = *f.Normalize
	}

	return processParams{
		mode:      mode,
		method:    method,
		format:    format,
		quality:   f.Quality,
		target:    media.TargetDuration(hours, minutes),
		crossfade: crossfade,
		suffix:    strings.TrimSpace(f.Suffix),
		normalize: normalize,
	}, nil
}

func formatValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.New("validation failed")
	}
	messages := make([]string, 0, len(verrs))
	for _, e := range verrs {
		messages = append(messages, e.Field()+": "+validationMessage(e))
	}
	return errors.New(strings.Join(messages, "; "))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	case "lte":
		return "must be at most " + e.Param()
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "excludesall":
		return "contains invalid characters"
	default:
		return "is invalid"
	}
}
